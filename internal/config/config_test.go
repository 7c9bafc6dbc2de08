package config

import "testing"

func validConfig() *Config {
	return &Config{
		Port:             "8080",
		GinMode:          "debug",
		MaxFileSize:      104857600,
		MaxPages:         500,
		JobExpireMinutes: 60,
	}
}

func TestValidateDefaults(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("default configuration must be valid: %v", err)
	}
}

func TestValidateIsUnconditional(t *testing.T) {
	// 検証は実行モードに依存しない。debugモードでも不正な設定は起動を止める。
	for _, mode := range []string{"debug", "release", "test"} {
		cfg := validConfig()
		cfg.GinMode = mode
		cfg.JobExpireMinutes = 0
		if err := cfg.Validate(); err == nil {
			t.Fatalf("mode %s: zero retention must be rejected", mode)
		}
	}
}

func TestValidateJobExpireMinutes(t *testing.T) {
	cfg := validConfig()
	cfg.JobExpireMinutes = -5
	if err := cfg.Validate(); err == nil {
		t.Fatal("negative retention must be rejected")
	}
}

func TestValidateS3Credentials(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"bucket unset needs no credentials", func(c *Config) {}, false},
		{"bucket with full credentials", func(c *Config) {
			c.S3Bucket = "artifacts"
			c.AwsAccessKey = "AKIA"
			c.AwsSecretKey = "secret"
			c.AwsRegion = "ap-northeast-1"
		}, false},
		{"bucket without access key", func(c *Config) {
			c.S3Bucket = "artifacts"
			c.AwsSecretKey = "secret"
			c.AwsRegion = "ap-northeast-1"
		}, true},
		{"bucket without secret key", func(c *Config) {
			c.S3Bucket = "artifacts"
			c.AwsAccessKey = "AKIA"
			c.AwsRegion = "ap-northeast-1"
		}, true},
		{"bucket without region", func(c *Config) {
			c.S3Bucket = "artifacts"
			c.AwsAccessKey = "AKIA"
			c.AwsSecretKey = "secret"
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr && err == nil {
				t.Fatal("expected validation error")
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("unexpected validation error: %v", err)
			}
		})
	}
}
