// Package config provides configuration for the segmenter service.
package config

import (
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// DefaultToolArgs is the argument template passed to the segmentation tool.
// Each whitespace-separated token is expanded on its own, so substituted
// paths may contain spaces.
const DefaultToolArgs = "{script} --imgsz {imgsz} --hide-labels --line-thickness {line_thickness} --conf {conf} --weights {weights} --source {source} --project {project}"

// WebSocket keepalive defaults. Both must be positive.
const (
	DefaultWSPingInterval = 30 * time.Second
	DefaultWSWriteTimeout = 10 * time.Second
)

// Config holds the segmenter configuration.
type Config struct {
	// Filesystem layout
	UploadsDir string
	OutputDir  string

	// External tool
	ToolCommand      string
	ToolScript       string
	ToolArgsTemplate string
	WeightsPath      string
	ImageSize        int
	LineThickness    int
	Confidence       float64
	ToolTimeout      time.Duration
	FailOnToolExit   bool
	WorkerQueueSize  int

	// Artifact discovery
	RunDirPrefix       string
	ArtifactExtensions []string

	// Server settings
	BindHost       string
	HTTPPort       int
	PublicScheme   string
	AdvertisedHost string
	AdvertisedPort int
	StaticPrefix   string
	MaxUploadBytes int64

	// Upload admission policy (rego module path, empty for built-in)
	PolicyFile string

	// WebSocket settings
	WSPingInterval time.Duration
	WSWriteTimeout time.Duration

	// Logging
	LogLevel string
}

// Load loads configuration from environment variables.
// Automatically loads .env file if present.
func Load() *Config {
	// Try to load .env file (fail silently if not present)
	_ = godotenv.Load()

	httpPort := getEnvInt("HTTP_PORT", 8000)
	cfg := &Config{
		UploadsDir:         getEnv("UPLOAD_DIR", "./uploads"),
		OutputDir:          getEnv("OUTPUT_DIR", "./output"),
		ToolCommand:        getEnv("TOOL_COMMAND", "python"),
		ToolScript:         getEnv("TOOL_SCRIPT", "./yolov5/segment/predict.py"),
		ToolArgsTemplate:   getEnv("TOOL_ARGS", DefaultToolArgs),
		WeightsPath:        getEnv("WEIGHTS_PATH", "./current_best.pt"),
		ImageSize:          getEnvInt("IMAGE_SIZE", 640),
		LineThickness:      getEnvInt("LINE_THICKNESS", 1),
		Confidence:         getEnvFloat("CONFIDENCE", 0.7),
		ToolTimeout:        time.Duration(getEnvInt("TOOL_TIMEOUT_MS", 300000)) * time.Millisecond,
		FailOnToolExit:     getEnvBool("FAIL_ON_TOOL_EXIT", true),
		WorkerQueueSize:    getEnvInt("WORKER_QUEUE_SIZE", 16),
		RunDirPrefix:       getEnv("RUN_DIR_PREFIX", "exp"),
		ArtifactExtensions: getEnvList("ARTIFACT_EXTENSIONS", []string{".jpg"}),
		BindHost:           getEnv("BIND_HOST", "0.0.0.0"),
		HTTPPort:           httpPort,
		PublicScheme:       getEnv("PUBLIC_SCHEME", "http"),
		AdvertisedHost:     getEnv("ADVERTISED_HOST", ""),
		AdvertisedPort:     getEnvInt("ADVERTISED_PORT", httpPort),
		StaticPrefix:       getEnv("STATIC_PREFIX", "/images"),
		MaxUploadBytes:     int64(getEnvInt("MAX_UPLOAD_BYTES", 32<<20)),
		PolicyFile:         getEnv("POLICY_FILE", ""),
		WSPingInterval:     getEnvPositiveMillis("WS_PING_INTERVAL_MS", DefaultWSPingInterval),
		WSWriteTimeout:     getEnvPositiveMillis("WS_WRITE_TIMEOUT_MS", DefaultWSWriteTimeout),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
	}

	if cfg.AdvertisedHost == "" {
		cfg.AdvertisedHost = DetectHost()
	}
	return cfg
}

// BindAddr returns the address the HTTP server listens on.
func (c *Config) BindAddr() string {
	return net.JoinHostPort(c.BindHost, strconv.Itoa(c.HTTPPort))
}

// DetectHost resolves the first IPv4 address of this machine's hostname,
// falling back to localhost.
func DetectHost() string {
	hostname, err := os.Hostname()
	if err != nil {
		return "localhost"
	}
	addrs, err := net.LookupHost(hostname)
	if err != nil {
		return "localhost"
	}
	for _, addr := range addrs {
		if ip := net.ParseIP(addr); ip != nil && ip.To4() != nil {
			return addr
		}
	}
	return "localhost"
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

// getEnvPositiveMillis reads a millisecond duration, falling back to
// defaultVal when the value is missing, malformed or not positive.
func getEnvPositiveMillis(key string, defaultVal time.Duration) time.Duration {
	if ms := getEnvInt(key, 0); ms > 0 {
		return time.Duration(ms) * time.Millisecond
	}
	return defaultVal
}

// getEnvList splits a comma-separated value, dropping empty items.
func getEnvList(key string, defaultVal []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	var out []string
	for _, item := range strings.Split(val, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return defaultVal
	}
	return out
}
