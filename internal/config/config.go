package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port     int
	Password string

	ModelPath          string
	ConfigPath         string
	DetectClasses      []string // Labels kept from the detector, "person" by default
	DetectionThreshold float64

	ZonesFile string        // YAML zone list; empty means the built-in counters
	MinVisit  time.Duration // Visits must last strictly longer to be reported

	TrackPersist     bool    // Keep identities across frames
	TrackMaxAge      int     // Frames a track may go unseen
	TrackMaxDistance float64 // Centroid distance in pixels that keeps an identity

	PreviewEveryNth int // Send every Nth annotated frame to viewers

	SnapshotsEnabled    bool
	SnapshotDirectory   string
	SnapshotBufferLimit int
	FlushInterval       int // Seconds between snapshot flushes

	DatabasePath    string
	UploadDirectory string
	LogDirectory    string

	MQTTBroker   string // host:port; empty disables publishing
	MQTTTopic    string
	MQTTClientID string
}

// Load reads an optional .env file and then the environment.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Port:     getEnvAsInt("PORT", 8080),
		Password: getEnv("PASSWORD", "counter"),

		ModelPath:          getEnv("MODEL_PATH", filepath.Join(".", "models", "frozen_inference_graph.pb")),
		ConfigPath:         getEnv("CONFIG_PATH", filepath.Join(".", "models", "ssd_mobilenet_v1_coco_2017_11_17.pbtxt")),
		DetectClasses:      getEnvAsList("DETECT_CLASSES", []string{"person"}),
		DetectionThreshold: getEnvAsFloat("DETECTION_THRESHOLD", 0.5),

		ZonesFile: getEnv("ZONES_FILE", ""),
		MinVisit:  getEnvAsSeconds("MIN_VISIT_SECONDS", time.Second),

		TrackPersist:     getEnvAsBool("TRACK_PERSIST", true),
		TrackMaxAge:      getEnvAsInt("TRACK_MAX_AGE", 15),
		TrackMaxDistance: getEnvAsFloat("TRACK_MAX_DISTANCE", 30),

		PreviewEveryNth: getEnvAsInt("PREVIEW_EVERY_NTH", 1),

		SnapshotsEnabled:    getEnvAsBool("SNAPSHOTS_ENABLED", true),
		SnapshotDirectory:   getEnv("SNAPSHOT_DIR", filepath.Join(".", "counter_snapshots")),
		SnapshotBufferLimit: getEnvAsInt("SNAPSHOT_BUFFER_LIMIT", 50),
		FlushInterval:       getEnvAsInt("FLUSH_INTERVAL", 10),

		DatabasePath:    getEnv("DB_PATH", filepath.Join(".", "data", "visits.db")),
		UploadDirectory: getEnv("UPLOAD_DIR", os.TempDir()),
		LogDirectory:    getEnv("LOG_DIR", filepath.Join(".", "logs")),

		MQTTBroker:   getEnv("MQTT_BROKER", ""),
		MQTTTopic:    getEnv("MQTT_TOPIC", "countertime/visits"),
		MQTTClientID: getEnv("MQTT_CLIENT_ID", "countertime"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

// getEnvAsSeconds reads a decimal number of seconds, e.g. "1.5".
func getEnvAsSeconds(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil && f >= 0 {
			return time.Duration(f * float64(time.Second))
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
