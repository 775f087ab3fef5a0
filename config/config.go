package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

const (
	DatabaseTypeSQLite   = "sqlite"
	DatabaseTypeMySQL    = "mysql"
	DatabaseTypePostgres = "postgresql"
)

const (
	DetectorRetinaFace = "retinaface"
	DetectorSSD        = "ssd"
)

const (
	defaultDatabasePath        = "photo_manager.db"
	defaultDatabaseName        = "photo_manager"
	defaultSimilarityThreshold = 0.6
	defaultYieldEvery          = 10
	defaultPort                = "8080"
)

type Config struct {
	// database selection
	DatabaseType     string
	DatabasePath     string // sqlite only
	DatabaseHost     string
	DatabasePort     string
	DatabaseName     string
	DatabaseUser     string
	DatabasePassword string

	// face detection model paths
	FaceDetector         string
	RetinaFaceModelPath  string
	FaceDNNNetConfigPath string
	FaceDNNNetModelPath  string
	RecognitionModelPath string
	RecognitionModelName string

	// matcher and batch settings
	SimilarityThreshold float64
	YieldEvery          int

	LogMode            string
	Port               string
	CORSAllowedOrigins []string

	// Warnings lists values that were rejected in favour of defaults.
	// LoadConfig runs before the logger exists, so callers log them.
	Warnings []string
}

func getEnvOrDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvIntOrDefault(envVar string, defaultVal int, warnings *[]string) int {
	valStr := os.Getenv(envVar)
	if valStr == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(valStr)
	if err == nil && val <= 0 {
		err = fmt.Errorf("must be positive")
	}
	if err != nil {
		*warnings = append(*warnings, fmt.Sprintf("invalid %s '%s', using default %d: %v", envVar, valStr, defaultVal, err))
		return defaultVal
	}
	return val
}

// getEnvFloatOrDefault only rejects unparsable values; range checks belong to the consumer.
func getEnvFloatOrDefault(envVar string, defaultVal float64, warnings *[]string) float64 {
	valStr := os.Getenv(envVar)
	if valStr == "" {
		return defaultVal
	}
	val, err := strconv.ParseFloat(valStr, 64)
	if err != nil {
		*warnings = append(*warnings, fmt.Sprintf("invalid %s '%s', using default %g: %v", envVar, valStr, defaultVal, err))
		return defaultVal
	}
	return val
}

func LoadConfig() (Config, error) {
	dbType := strings.ToLower(getEnvOrDefault("DATABASE_TYPE", DatabaseTypeSQLite))
	dbPort := ""
	switch dbType {
	case DatabaseTypeSQLite:
	case DatabaseTypeMySQL:
		dbPort = "3306"
	case DatabaseTypePostgres, "postgres":
		dbType = DatabaseTypePostgres
		dbPort = "5432"
	default:
		return Config{}, fmt.Errorf("unsupported DATABASE_TYPE '%s' (expected sqlite, mysql or postgresql)", dbType)
	}

	detector := strings.ToLower(getEnvOrDefault("FACE_DETECTOR", DetectorRetinaFace))
	if detector != DetectorRetinaFace && detector != DetectorSSD {
		return Config{}, fmt.Errorf("unsupported FACE_DETECTOR '%s' (expected retinaface or ssd)", detector)
	}

	var origins []string
	for _, o := range strings.Split(getEnvOrDefault("CORS_ALLOWED_ORIGINS", "http://localhost:5173"), ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}

	var warnings []string
	cfg := Config{
		DatabaseType:         dbType,
		DatabasePath:         getEnvOrDefault("DATABASE_PATH", defaultDatabasePath),
		DatabaseHost:         getEnvOrDefault("DATABASE_HOST", "localhost"),
		DatabasePort:         getEnvOrDefault("DATABASE_PORT", dbPort),
		DatabaseName:         getEnvOrDefault("DATABASE_NAME", defaultDatabaseName),
		DatabaseUser:         getEnvOrDefault("DATABASE_USER", "user"),
		DatabasePassword:     getEnvOrDefault("DATABASE_PASSWORD", ""),
		FaceDetector:         detector,
		RetinaFaceModelPath:  getEnvOrDefault("FACE_RETINAFACE_MODEL_PATH", "./models/retinaface.onnx"),
		FaceDNNNetConfigPath: getEnvOrDefault("FACE_DNN_CONFIG_PATH", "./models/deploy.prototxt.txt"),
		FaceDNNNetModelPath:  getEnvOrDefault("FACE_DNN_MODEL_PATH", "./models/res10_300x300_ssd_iter_140000_fp16.caffemodel"),
		RecognitionModelPath: getEnvOrDefault("FACE_RECOGNITION_MODEL_PATH", "./models/arcface.onnx"),
		RecognitionModelName: strings.ToLower(getEnvOrDefault("FACE_RECOGNITION_MODEL", "arcface")),
		SimilarityThreshold:  getEnvFloatOrDefault("SIMILARITY_THRESHOLD", defaultSimilarityThreshold, &warnings),
		YieldEvery:           getEnvIntOrDefault("PROCESS_YIELD_EVERY", defaultYieldEvery, &warnings),
		LogMode:              getEnvOrDefault("LOG_MODE", "development"),
		Port:                 getEnvOrDefault("PORT", defaultPort),
		CORSAllowedOrigins:   origins,
	}
	cfg.Warnings = warnings

	return cfg, nil
}

// DSN returns the driver-specific data source name for the configured database type.
func (c Config) DSN() string {
	switch c.DatabaseType {
	case DatabaseTypeMySQL:
		return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
			c.DatabaseUser, c.DatabasePassword, c.DatabaseHost, c.DatabasePort, c.DatabaseName)
	case DatabaseTypePostgres:
		return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
			c.DatabaseHost, c.DatabasePort, c.DatabaseUser, c.DatabasePassword, c.DatabaseName)
	default:
		if strings.Contains(c.DatabasePath, "?") {
			return c.DatabasePath
		}
		return c.DatabasePath + "?_foreign_keys=on"
	}
}
