package upstream

import "time"

// Config holds backend API configuration. BaseURL is required; the auth
// endpoint paths default to the conventional layout.
type Config struct {
	BaseURL     string        `env:"BACKEND_API_URL,required"`
	LoginPath   string        `env:"BACKEND_LOGIN_PATH" envDefault:"/auth/login"`
	LogoutPath  string        `env:"BACKEND_LOGOUT_PATH" envDefault:"/auth/logout"`
	RefreshPath string        `env:"BACKEND_REFRESH_PATH" envDefault:"/auth/refresh"`
	VerifyPath  string        `env:"BACKEND_VERIFY_PATH" envDefault:"/auth/verify"`
	Timeout     time.Duration `env:"BACKEND_TIMEOUT" envDefault:"30s"`
}
