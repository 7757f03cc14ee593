package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"pdf-translator/internal/constants"
	"pdf-translator/internal/extract"
	"pdf-translator/internal/layout"
	"pdf-translator/internal/pipeline"
	"pdf-translator/internal/reconstruct"
	"pdf-translator/internal/render"
	"pdf-translator/ocr"
	"pdf-translator/translate"
)

// Global Variables and Constants
var (
	// Logger
	log = logrus.New()

	// Environment Variables, read by loadEnv
	listenAddr          string
	logLevel            string
	uploadDir           string
	outputDir           string
	dbPath              string
	maxUploadMB         int
	numWorkers          int
	extractWorkers      int
	sourceLang          string
	targetLang          string
	translationProvider string
	deeplAPIKey         string
	deeplAPIURL         string
	llmModel            string
	openaiAPIKey        string
	openaiBaseURL       string
	ollamaHost          string
	googleAIAPIKey      string
	requestsPerMinute   int
	maxRetries          int
	backoffMaxSeconds   int
	batchSize           int
	pacingMs            int
	ocrProvider         string
	ocrLanguage         string
	ocrDPI              int
	iosOCRServerURL     string
	azureEndpoint       string
	azureAPIKey         string
	azureModelID        string
	azureTimeout        int
	googleProjectID     string
	googleLocation      string
	googleProcessorID   string
	fontPath            string
)

// jobRunner runs one translation job
type jobRunner interface {
	Run(ctx context.Context, req pipeline.Request) (*pipeline.Result, error)
}

// availabilityChecker is implemented by translators and OCR engines that can report their health
type availabilityChecker interface {
	Available(ctx context.Context) error
}

// App struct to hold dependencies
type App struct {
	Runner     jobRunner
	Database   *gorm.DB
	Jobs       *JobStore
	Translator translate.Translator
	OCR        ocr.Provider

	uploadDir      string
	outputDir      string
	maxUploadBytes int64
	sourceLang     string
	targetLang     string
}

func main() {
	// A missing .env file is fine, the environment is used as is
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Warnf("Could not load .env file: %v", err)
	}
	loadEnv()

	// Initialize logrus logger
	initLogger()

	// Validate Environment Variables
	validateEnvVars()

	ctx := context.Background()

	translator, err := translate.NewTranslator(ctx, translationConfig())
	if err != nil {
		log.Fatalf("Failed to create translator: %v", err)
	}

	var ocrEngine ocr.Provider
	if ocrProvider != "none" {
		ocrEngine, err = ocr.NewProvider(ocrConfig())
		if err != nil {
			log.Fatalf("Failed to create OCR provider: %v", err)
		}
	}

	database := InitializeDB(dbPath)

	app := &App{
		Runner:         pipeline.New(translator, ocrEngine, pipelineConfig()),
		Database:       database,
		Jobs:           NewJobStore(100),
		Translator:     translator,
		OCR:            ocrEngine,
		uploadDir:      uploadDir,
		outputDir:      outputDir,
		maxUploadBytes: int64(maxUploadMB) << 20,
		sourceLang:     sourceLang,
		targetLang:     targetLang,
	}

	for _, dir := range []string{uploadDir, outputDir} {
		if err := os.MkdirAll(dir, os.ModePerm); err != nil {
			log.Fatalf("Failed to create directory %s: %v", dir, err)
		}
	}

	// Create a Gin router with default middleware (logger and recovery)
	router := gin.Default()
	router.MaxMultipartMemory = app.maxUploadBytes
	app.registerRoutes(router)

	startWorkerPool(app, numWorkers)

	log.Infof("Server started on %s", listenAddr)
	server := &http.Server{
		Addr:              listenAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	if err := server.ListenAndServe(); err != nil {
		log.Fatalf("Failed to run server: %v", err)
	}
}

func (app *App) registerRoutes(router *gin.Engine) {
	api := router.Group("/api")
	{
		api.POST("/translate", app.submitTranslationHandler)
		api.GET("/jobs", app.getAllJobsHandler)
		api.GET("/jobs/:job_id", app.getJobStatusHandler)
		api.GET("/jobs/:job_id/download", app.downloadHandler)
		api.POST("/jobs/:job_id/cancel", app.cancelJobHandler)
		api.GET("/history", app.getHistoryHandler)
		api.GET("/health", app.healthHandler)
	}
}

// loadEnv reads the configuration from the environment
func loadEnv() {
	listenAddr = getEnvOrDefault("LISTEN_ADDR", ":8080")
	logLevel = strings.ToLower(os.Getenv("LOG_LEVEL"))
	uploadDir = getEnvOrDefault("UPLOAD_DIR", "uploads")
	outputDir = getEnvOrDefault("OUTPUT_DIR", "outputs")
	dbPath = getEnvOrDefault("DB_PATH", "db/translations.db")
	maxUploadMB = getEnvAsIntOrDefault("MAX_UPLOAD_MB", constants.MaxUploadSize>>20)
	numWorkers = getEnvAsIntOrDefault("WORKERS", 1)
	extractWorkers = getEnvAsIntOrDefault("EXTRACT_WORKERS", 1)
	sourceLang = strings.ToUpper(getEnvOrDefault("SOURCE_LANG", "TR"))
	targetLang = strings.ToUpper(getEnvOrDefault("TARGET_LANG", "DE"))
	translationProvider = strings.ToLower(getEnvOrDefault("TRANSLATION_PROVIDER", "deepl"))
	deeplAPIKey = os.Getenv("DEEPL_API_KEY")
	deeplAPIURL = os.Getenv("DEEPL_API_URL")
	llmModel = os.Getenv("LLM_MODEL")
	openaiAPIKey = os.Getenv("OPENAI_API_KEY")
	openaiBaseURL = os.Getenv("OPENAI_BASE_URL")
	ollamaHost = os.Getenv("OLLAMA_HOST")
	googleAIAPIKey = os.Getenv("GOOGLEAI_API_KEY")
	requestsPerMinute = getEnvAsIntOrDefault("TRANSLATION_REQUESTS_PER_MINUTE", 0)
	maxRetries = getEnvAsIntOrDefault("TRANSLATION_MAX_RETRIES", 0)
	backoffMaxSeconds = getEnvAsIntOrDefault("TRANSLATION_BACKOFF_MAX_SECONDS", 0)
	batchSize = getEnvAsIntOrDefault("TRANSLATION_BATCH_SIZE", translate.DefaultBatchSize)
	pacingMs = getEnvAsIntOrDefault("TRANSLATION_PACING_MS", int(translate.DefaultPacingDelay/time.Millisecond))
	ocrProvider = strings.ToLower(getEnvOrDefault("OCR_PROVIDER", "tesseract"))
	ocrLanguage = getEnvOrDefault("OCR_LANGUAGE", "tur")
	ocrDPI = getEnvAsIntOrDefault("OCR_DPI", int(extract.DefaultOCRDPI))
	iosOCRServerURL = os.Getenv("IOS_OCR_SERVER_URL")
	azureEndpoint = os.Getenv("AZURE_DOCAI_ENDPOINT")
	azureAPIKey = os.Getenv("AZURE_DOCAI_KEY")
	azureModelID = os.Getenv("AZURE_DOCAI_MODEL_ID")
	azureTimeout = getEnvAsIntOrDefault("AZURE_DOCAI_TIMEOUT_SECONDS", 120)
	googleProjectID = os.Getenv("GOOGLE_PROJECT_ID")
	googleLocation = os.Getenv("GOOGLE_LOCATION")
	googleProcessorID = os.Getenv("GOOGLE_PROCESSOR_ID")
	fontPath = os.Getenv("FONT_PATH")
}

func initLogger() {
	level := logrus.InfoLevel
	switch logLevel {
	case "debug":
		level = logrus.DebugLevel
	case "info", "":
		level = logrus.InfoLevel
	case "warn":
		level = logrus.WarnLevel
	case "error":
		level = logrus.ErrorLevel
	default:
		log.Fatalf("Invalid log level: '%s'.", logLevel)
	}

	log.SetLevel(level)
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	// Propagate the level to the packages that own a logger
	ocr.SetLogLevel(level)
	translate.SetLogLevel(level)
	render.SetLogLevel(level)
	extract.SetLogLevel(level)
	reconstruct.SetLogLevel(level)
	pipeline.SetLogLevel(level)
}

// validateEnvVars ensures all necessary environment variables are set
func validateEnvVars() {
	if err := checkEnv(); err != nil {
		log.Fatal(err)
	}
}

func checkEnv() error {
	switch translationProvider {
	case "deepl":
		if deeplAPIKey == "" {
			return fmt.Errorf("Please set the DEEPL_API_KEY environment variable for the DeepL provider.")
		}
	case "openai":
		if llmModel == "" {
			return fmt.Errorf("Please set the LLM_MODEL environment variable.")
		}
		if openaiAPIKey == "" && openaiBaseURL == "" {
			return fmt.Errorf("Please set the OPENAI_API_KEY environment variable for OpenAI provider.")
		}
	case "ollama":
		if llmModel == "" {
			return fmt.Errorf("Please set the LLM_MODEL environment variable.")
		}
	case "googleai":
		if llmModel == "" {
			return fmt.Errorf("Please set the LLM_MODEL environment variable.")
		}
		if googleAIAPIKey == "" {
			return fmt.Errorf("Please set the GOOGLEAI_API_KEY environment variable for the Google AI provider.")
		}
	default:
		return fmt.Errorf("Please set the TRANSLATION_PROVIDER environment variable to 'deepl', 'openai', 'ollama' or 'googleai'.")
	}

	switch ocrProvider {
	case "tesseract", "none":
	case "ios_ocr":
		if iosOCRServerURL == "" {
			return fmt.Errorf("Please set the IOS_OCR_SERVER_URL environment variable for the iOS-OCR-Server provider.")
		}
	case "azure":
		if azureEndpoint == "" || azureAPIKey == "" {
			return fmt.Errorf("Please set AZURE_DOCAI_ENDPOINT and AZURE_DOCAI_KEY for the Azure provider.")
		}
	case "google_docai":
		if googleProjectID == "" || googleLocation == "" || googleProcessorID == "" {
			return fmt.Errorf("Please set GOOGLE_PROJECT_ID, GOOGLE_LOCATION and GOOGLE_PROCESSOR_ID for the Google Document AI provider.")
		}
	default:
		return fmt.Errorf("Please set the OCR_PROVIDER environment variable to 'tesseract', 'ios_ocr', 'azure', 'google_docai' or 'none'.")
	}

	if sourceLang == targetLang {
		return fmt.Errorf("SOURCE_LANG and TARGET_LANG must differ, both are %s.", sourceLang)
	}
	if maxUploadMB <= 0 {
		return fmt.Errorf("MAX_UPLOAD_MB must be positive.")
	}
	if numWorkers <= 0 || extractWorkers <= 0 {
		return fmt.Errorf("WORKERS and EXTRACT_WORKERS must be positive.")
	}
	if batchSize <= 0 {
		return fmt.Errorf("TRANSLATION_BATCH_SIZE must be positive.")
	}
	if ocrDPI < 72 {
		return fmt.Errorf("OCR_DPI must be at least 72.")
	}
	if fontPath != "" {
		if _, err := os.Stat(fontPath); err != nil {
			return fmt.Errorf("FONT_PATH is not readable: %v", err)
		}
	}
	return nil
}

func translationConfig() translate.Config {
	return translate.Config{
		Provider:          translationProvider,
		DeepLAPIKey:       deeplAPIKey,
		DeepLAPIURL:       deeplAPIURL,
		Model:             llmModel,
		OpenAIAPIKey:      openaiAPIKey,
		OpenAIBaseURL:     openaiBaseURL,
		OllamaHost:        ollamaHost,
		GoogleAPIKey:      googleAIAPIKey,
		RequestsPerMinute: float64(requestsPerMinute),
		MaxRetries:        maxRetries,
		BackoffMaxWait:    time.Duration(backoffMaxSeconds) * time.Second,
	}
}

func ocrConfig() ocr.Config {
	return ocr.Config{
		Provider:          ocrProvider,
		TesseractLanguage: ocrLanguage,
		IOSOCRServerURL:   iosOCRServerURL,
		GoogleProjectID:   googleProjectID,
		GoogleLocation:    googleLocation,
		GoogleProcessorID: googleProcessorID,
		AzureEndpoint:     azureEndpoint,
		AzureAPIKey:       azureAPIKey,
		AzureModelID:      azureModelID,
		AzureTimeout:      azureTimeout,
	}
}

func pipelineConfig() pipeline.Config {
	cfg := pipeline.DefaultConfig()
	cfg.BatchSize = batchSize
	cfg.PacingDelay = time.Duration(pacingMs) * time.Millisecond
	cfg.OCRDPI = float64(ocrDPI)
	cfg.FontPath = fontPath
	cfg.ExtractWorkers = extractWorkers
	cfg.MaxGroupDistance = layout.DefaultMaxDistance
	return cfg
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsIntOrDefault(key string, defaultValue int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		log.Warnf("Invalid value for %s: %q, using default %d", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}
