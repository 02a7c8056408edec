package authn

import (
	"context"
	"net/http"
	"testing"

	"credit-service/internal/constants"
	creditErrors "credit-service/internal/errors"

	"github.com/go-kratos/kratos/v2/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type headerCarrier http.Header

func (hc headerCarrier) Get(key string) string      { return http.Header(hc).Get(key) }
func (hc headerCarrier) Set(key, value string)      { http.Header(hc).Set(key, value) }
func (hc headerCarrier) Add(key, value string)      { http.Header(hc).Add(key, value) }
func (hc headerCarrier) Values(key string) []string { return http.Header(hc).Values(key) }
func (hc headerCarrier) Keys() []string {
	keys := make([]string, 0, len(hc))
	for k := range hc {
		keys = append(keys, k)
	}
	return keys
}

type testTransport struct {
	operation string
	header    headerCarrier
}

func (tr *testTransport) Kind() transport.Kind            { return transport.KindHTTP }
func (tr *testTransport) Endpoint() string                { return "" }
func (tr *testTransport) Operation() string               { return tr.operation }
func (tr *testTransport) RequestHeader() transport.Header { return tr.header }
func (tr *testTransport) ReplyHeader() transport.Header   { return headerCarrier{} }

func serverContext(operation, userID string) context.Context {
	tr := &testTransport{operation: operation, header: headerCarrier{}}
	if userID != "" {
		tr.header.Set(constants.HeaderUserID, userID)
	}
	return transport.NewServerContext(context.Background(), tr)
}

func echoUser(ctx context.Context, req interface{}) (interface{}, error) {
	userID, _ := UserIDFromContext(ctx)
	return userID, nil
}

func TestServer_InjectsUserID(t *testing.T) {
	h := Server()(echoUser)

	out, err := h(serverContext("/credit.v1.CreditService/GetBalance", " u1 "), nil)
	require.NoError(t, err)
	assert.Equal(t, "u1", out)
}

func TestServer_RejectsMissingHeader(t *testing.T) {
	h := Server()(echoUser)

	_, err := h(serverContext("/credit.v1.CreditService/GetBalance", ""), nil)
	assert.True(t, creditErrors.Is(err, creditErrors.ErrCodeUnauthenticated))

	_, err = h(context.Background(), nil)
	assert.True(t, creditErrors.Is(err, creditErrors.ErrCodeUnauthenticated))
}

func TestSelector_SkipsWhiteList(t *testing.T) {
	h := Selector("/credit.v1.CreditService/ListPlans")(echoUser)

	out, err := h(serverContext("/credit.v1.CreditService/ListPlans", ""), nil)
	require.NoError(t, err)
	assert.Equal(t, "", out)

	_, err = h(serverContext("/credit.v1.CreditService/GetBalance", ""), nil)
	assert.True(t, creditErrors.Is(err, creditErrors.ErrCodeUnauthenticated))
}

func TestUserIDFromContext(t *testing.T) {
	_, ok := UserIDFromContext(context.Background())
	assert.False(t, ok)

	userID, ok := UserIDFromContext(NewContext(context.Background(), "u2"))
	assert.True(t, ok)
	assert.Equal(t, "u2", userID)
}
