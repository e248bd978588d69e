package config

import (
	"os"
	"testing"
)

func TestGetEnv(t *testing.T) {
	os.Setenv("TEST_GET_ENV_VAR", "test_value")
	defer os.Unsetenv("TEST_GET_ENV_VAR")

	if got := GetEnv("TEST_GET_ENV_VAR", "default"); got != "test_value" {
		t.Errorf("GetEnv() = %v, want %v", got, "test_value")
	}

	if got := GetEnv("NON_EXISTING_VAR", "default_value"); got != "default_value" {
		t.Errorf("GetEnv() = %v, want %v", got, "default_value")
	}
}

func TestRequireEnv(t *testing.T) {
	os.Setenv("TEST_REQUIRE_ENV_VAR", "required_value")
	defer os.Unsetenv("TEST_REQUIRE_ENV_VAR")

	if got := RequireEnv("TEST_REQUIRE_ENV_VAR"); got != "required_value" {
		t.Errorf("RequireEnv() = %v, want %v", got, "required_value")
	}

	defer func() {
		if r := recover(); r == nil {
			t.Errorf("RequireEnv() should panic for missing env var")
		}
	}()
	RequireEnv("DEFINITELY_NON_EXISTING_VAR_12345")
}

func TestGetEnvironment(t *testing.T) {
	original := os.Getenv("STOCKFLOW_SERVER_ENVIRONMENT")
	defer func() {
		if original != "" {
			os.Setenv("STOCKFLOW_SERVER_ENVIRONMENT", original)
		} else {
			os.Unsetenv("STOCKFLOW_SERVER_ENVIRONMENT")
		}
	}()

	os.Unsetenv("STOCKFLOW_SERVER_ENVIRONMENT")
	if got := GetEnvironment(); got != EnvDevelopment {
		t.Errorf("GetEnvironment() = %v, want %v", got, EnvDevelopment)
	}

	os.Setenv("STOCKFLOW_SERVER_ENVIRONMENT", "PRODUCTION")
	if got := GetEnvironment(); got != EnvProduction {
		t.Errorf("GetEnvironment() = %v, want %v (case-insensitive)", got, EnvProduction)
	}

	if !IsProduction() {
		t.Error("IsProduction() = false, want true")
	}
	if !IsProductionLike() {
		t.Error("IsProductionLike() = false, want true")
	}
}
