// Package config provides configuration management for the ABC payment adapter.
// Configuration can be loaded from YAML files and overridden by environment variables.
package config

import (
	"fmt"
	"github.com/ilyakaznacheev/cleanenv"
	"sync"
	"time"
)

// Merchant is one signing identity registered with the bank.
type Merchant struct {
	ID           string `yaml:"id"`
	CertFile     string `yaml:"cert_file"`
	CertPassword string `yaml:"cert_password"`
}

// Abc holds the connection settings of the ABC unified payment platform.
type Abc struct {
	ServerName      string        `yaml:"server_name" env:"ABC_SERVER_NAME" env-default:"pay.abchina.com"`
	ServerPort      string        `yaml:"server_port" env:"ABC_SERVER_PORT" env-default:"443"`
	ConnectMethod   string        `yaml:"connect_method" env:"ABC_CONNECT_METHOD" env-default:"https"`
	TrxUrlPath      string        `yaml:"trx_url_path" env:"ABC_TRX_URL_PATH" env-default:"/ebus/ReceiveMerchantTrxReqServlet"`
	IETrxUrlPath    string        `yaml:"ie_trx_url_path" env:"ABC_IE_TRX_URL_PATH" env-default:"/ebus/ReceiveMerchantIERequestServlet"`
	Timeout         time.Duration `yaml:"timeout" env:"ABC_TIMEOUT" env-default:"30s"`
	PrintLog        bool          `yaml:"print_log" env:"ABC_PRINT_LOG" env-default:"false"`
	PagePayIE       bool          `yaml:"page_pay_ie" env:"ABC_PAGE_PAY_IE" env-default:"false"`
	TrustPayCert    string        `yaml:"trustpay_cert_file" env:"ABC_TRUSTPAY_CERT" env-default:"cert/prod/TrustPay.cer"`
	TrustStoreDir   string        `yaml:"truststore_dir" env:"ABC_TRUSTSTORE_DIR" env-default:"cert/prod"`
	TrustStoreFiles []string      `yaml:"truststore_files" env:"ABC_TRUSTSTORE_FILES" env-separator:"," env-default:"TrustPay.cer,baltimore.cer,digicert-g2.cer,digicert-root.cer,digicert-sha2.cer,verisign-g5.cer"`
	Merchants       []Merchant    `yaml:"merchants"`
}

// BaseURL is the scheme, host and port every transaction path is appended to.
func (a *Abc) BaseURL() string {
	return fmt.Sprintf("%s://%s:%s", a.ConnectMethod, a.ServerName, a.ServerPort)
}

// Config holds all configuration for the ABC payment adapter.
// Values can be set via YAML configuration file or environment variables.
// Environment variables take precedence over YAML values.
type Config struct {
	IsDebug     bool   `yaml:"is_debug" env:"DEBUG" env-default:"false"`
	Environment string `yaml:"environment" env:"ENVIRONMENT" env-default:"Production"`
	LogFormat   string `yaml:"log_format" env:"LOG_FORMAT" env-default:"text"`
	Listen      struct {
		BindIP   string `yaml:"bind_ip" env:"BIND_IP" env-default:"0.0.0.0"`
		Port     string `yaml:"port" env:"PORT" env-default:"8080"`
		TLS      bool   `yaml:"tls_enabled" env:"TLS_ENABLED" env-default:"false"`
		CertFile string `yaml:"cert_file" env:"TLS_CERT_FILE" env-default:""`
		KeyFile  string `yaml:"key_file" env:"TLS_KEY_FILE" env-default:""`
	} `yaml:"listen"`
	Mongo struct {
		Enabled  bool   `yaml:"enabled" env:"MONGO_ENABLED" env-default:"false"`
		Host     string `yaml:"host" env:"MONGO_HOST" env-default:"127.0.0.1"`
		Port     string `yaml:"port" env:"MONGO_PORT" env-default:"27017"`
		User     string `yaml:"user" env:"MONGO_USER" env-default:""`
		Password string `yaml:"password" env:"MONGO_PASSWORD" env-default:""`
		Database string `yaml:"database" env:"MONGO_DATABASE" env-default:"abcpay"`
	} `yaml:"mongo"`
	Abc Abc `yaml:"abc"`
}

// MerchantIDs lists configured merchant numbers in configuration order.
func (c *Config) MerchantIDs() []string {
	ids := make([]string, 0, len(c.Abc.Merchants))
	for _, m := range c.Abc.Merchants {
		ids = append(ids, m.ID)
	}
	return ids
}

// Load reads the YAML file at path and applies environment overrides.
func Load(path string) (*Config, error) {
	conf := &Config{}
	if err := cleanenv.ReadConfig(path, conf); err != nil {
		desc, _ := cleanenv.GetDescription(conf, nil)
		return nil, fmt.Errorf("load config: %w; %s", err, desc)
	}
	return conf, nil
}

var instance *Config
var once sync.Once

// GetConfig loads configuration from the specified YAML file path.
// This function uses a singleton pattern and only loads the config once.
//
// Example:
//
//	cfg, err := config.GetConfig("config.yml")
//	if err != nil {
//	    log.Fatal(err)
//	}
func GetConfig(path string) (*Config, error) {
	var err error
	once.Do(func() {
		instance, err = Load(path)
	})
	return instance, err
}
