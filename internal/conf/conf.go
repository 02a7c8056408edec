// Package conf 定义服务配置结构，由 kratos config 从 configs/config.yaml 扫描而来。
package conf

import (
	"encoding/json"
	"fmt"
	"time"
)

// Bootstrap 根配置
type Bootstrap struct {
	Server    *Server    `json:"server"`
	Data      *Data      `json:"data"`
	Payment   *Payment   `json:"payment"`
	Ai        *AI        `json:"ai"`
	Credit    *Credit    `json:"credit"`
	Reconcile *Reconcile `json:"reconcile"`
	Log       *Log       `json:"log"`
}

// Server 服务端配置
type Server struct {
	Http *Server_HTTP `json:"http"`
}

// Server_HTTP HTTP 服务配置
type Server_HTTP struct {
	Network string    `json:"network"`
	Addr    string    `json:"addr"`
	Timeout *Duration `json:"timeout"`
}

// Data 数据层配置
type Data struct {
	Database *Data_Database `json:"database"`
	Redis    *Data_Redis    `json:"redis"`
	Rocketmq *Data_RocketMQ `json:"rocketmq"`
}

// Data_Database 数据库配置
type Data_Database struct {
	Driver       string    `json:"driver"` // mysql / sqlite
	Source       string    `json:"source"`
	AutoMigrate  bool      `json:"auto_migrate"`
	MaxOpenConns int       `json:"max_open_conns"`
	MaxIdleConns int       `json:"max_idle_conns"`
	ConnMaxLife  *Duration `json:"conn_max_life"`
}

// Data_Redis Redis 配置，Addr 为空表示不启用
type Data_Redis struct {
	Addr         string    `json:"addr"`
	Password     string    `json:"password"`
	Db           int       `json:"db"`
	ReadTimeout  *Duration `json:"read_timeout"`
	WriteTimeout *Duration `json:"write_timeout"`
}

// Data_RocketMQ RocketMQ 配置
type Data_RocketMQ struct {
	Enabled       bool     `json:"enabled"`
	NameServers   []string `json:"name_servers"`
	GroupName     string   `json:"group_name"`
	NotifyTopic   string   `json:"notify_topic"`
	LedgerTopic   string   `json:"ledger_topic"`
	ProducerGroup string   `json:"producer_group"`
	RetryTimes    int32    `json:"retry_times"`
}

// Payment 支付配置
type Payment struct {
	Paypal *Payment_PayPal `json:"paypal"`
}

// Payment_PayPal PayPal REST 配置
type Payment_PayPal struct {
	Mode         string    `json:"mode"` // sandbox / live
	BaseUrl      string    `json:"base_url"`
	ClientId     string    `json:"client_id"`
	ClientSecret string    `json:"client_secret"`
	BrandName    string    `json:"brand_name"`
	ReturnUrl    string    `json:"return_url"`
	CancelUrl    string    `json:"cancel_url"`
	Timeout      *Duration `json:"timeout"`
}

// AI AI 后端配置
type AI struct {
	Deepseek *AI_DeepSeek `json:"deepseek"`
}

// AI_DeepSeek DeepSeek（OpenAI 兼容）配置
type AI_DeepSeek struct {
	BaseUrl     string    `json:"base_url"`
	ApiKey      string    `json:"api_key"`
	Model       string    `json:"model"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens"`
	Timeout     *Duration `json:"timeout"`
}

// Credit 积分业务配置
type Credit struct {
	Plans                     []*Credit_Plan   `json:"plans"`
	FeaturePrices             map[string]int64 `json:"feature_prices"`
	RefundOnGenerationFailure bool             `json:"refund_on_generation_failure"`
	CaptureLockExpiry         *Duration        `json:"capture_lock_expiry"`
	BalanceLowThreshold       int64            `json:"balance_low_threshold"`
}

// Credit_Plan 积分套餐
type Credit_Plan struct {
	Id       string `json:"id"`
	Name     string `json:"name"`
	Credits  int64  `json:"credits"`
	Price    string `json:"price"`
	Currency string `json:"currency"`
}

// Reconcile 对账任务配置
type Reconcile struct {
	Schedule     string    `json:"schedule"`
	BatchSize    int       `json:"batch_size"`
	PendingAfter *Duration `json:"pending_after"`
	Timeout      *Duration `json:"timeout"`
}

// Log 日志配置
type Log struct {
	Level      string `json:"level"`
	Format     string `json:"format"`
	Output     string `json:"output"`
	FilePath   string `json:"file_path"`
	MaxSize    int    `json:"max_size"`
	MaxAge     int    `json:"max_age"`
	MaxBackups int    `json:"max_backups"`
	Compress   bool   `json:"compress"`
}

// Duration 支持 "30s" 或秒数两种写法
type Duration struct {
	time.Duration
}

// AsDuration 返回 time.Duration，nil 安全
func (d *Duration) AsDuration() time.Duration {
	if d == nil {
		return 0
	}
	return d.Duration
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Duration) UnmarshalJSON(b []byte) error {
	var v interface{}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch value := v.(type) {
	case float64:
		d.Duration = time.Duration(value * float64(time.Second))
		return nil
	case string:
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", value, err)
		}
		d.Duration = parsed
		return nil
	default:
		return fmt.Errorf("invalid duration: %s", string(b))
	}
}

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}
