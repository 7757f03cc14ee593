package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"
)

const historyLimit = 100

// submitTranslationHandler handles the POST /api/translate endpoint
func (app *App) submitTranslationHandler(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, app.maxUploadBytes+1<<20)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": fmt.Sprintf("File exceeds the %d MB upload limit", app.maxUploadBytes>>20)})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing file upload"})
		return
	}
	if fileHeader.Size > app.maxUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": fmt.Sprintf("File exceeds the %d MB upload limit", app.maxUploadBytes>>20)})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Could not read upload"})
		return
	}
	mtype, err := mimetype.DetectReader(file)
	file.Close()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Could not read upload"})
		return
	}
	if !mtype.Is("application/pdf") {
		c.JSON(http.StatusUnsupportedMediaType, gin.H{"error": fmt.Sprintf("Only PDF files are supported, got %s", mtype.String())})
		return
	}

	srcLang := strings.ToUpper(strings.TrimSpace(c.DefaultPostForm("source_lang", app.sourceLang)))
	tgtLang := strings.ToUpper(strings.TrimSpace(c.DefaultPostForm("target_lang", app.targetLang)))
	if srcLang == "" || tgtLang == "" || srcLang == tgtLang {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Source and target language must be set and differ"})
		return
	}

	useOCR := false
	if v := c.PostForm("use_ocr"); v != "" {
		useOCR, err = strconv.ParseBool(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid use_ocr value"})
			return
		}
	}

	jobID := generateJobID()
	fileName := sanitizeFileName(fileHeader.Filename)
	inputPath := filepath.Join(app.uploadDir, jobID, fileName)
	if err := os.MkdirAll(filepath.Dir(inputPath), os.ModePerm); err != nil {
		log.Errorf("Failed to create upload directory: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store upload"})
		return
	}
	if err := c.SaveUploadedFile(fileHeader, inputPath); err != nil {
		log.Errorf("Failed to save upload: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store upload"})
		return
	}

	// Create a new job
	job := &Job{
		ID:         jobID,
		FileName:   fileName,
		InputPath:  inputPath,
		OutputDir:  filepath.Join(app.outputDir, jobID),
		SourceLang: srcLang,
		TargetLang: tgtLang,
		UseOCR:     useOCR,
		Status:     statusPending,
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}

	// Add job to store and queue
	app.Jobs.addJob(job)
	if !app.Jobs.enqueue(job) {
		app.Jobs.updateJobStatus(jobID, statusFailed, "Job queue is full")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Too many pending jobs, try again later"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"job_id": jobID})
}

func sanitizeFileName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == "/" || name == "" {
		return "document.pdf"
	}
	return name
}

func jobResponse(job Job) gin.H {
	response := gin.H{
		"job_id":      job.ID,
		"file_name":   job.FileName,
		"status":      job.Status,
		"source_lang": job.SourceLang,
		"target_lang": job.TargetLang,
		"use_ocr":     job.UseOCR,
		"created_at":  job.CreatedAt,
		"updated_at":  job.UpdatedAt,
		"pages_done":  job.PagesDone,
		"total_pages": job.TotalPages,
	}

	switch job.Status {
	case statusCompleted:
		response["mode"] = job.Mode
		if job.Result != nil {
			response["outcome"] = job.Result.Status
			response["overflows"] = job.Result.Overflows
			response["conditions"] = job.Result.Conditions
		}
	case statusFailed, statusCancelled:
		response["error"] = job.Error
	}
	return response
}

func (app *App) getJobStatusHandler(c *gin.Context) {
	job, exists := app.Jobs.getJob(c.Param("job_id"))
	if !exists {
		c.JSON(http.StatusNotFound, gin.H{"error": "Job not found"})
		return
	}
	c.JSON(http.StatusOK, jobResponse(job))
}

func (app *App) getAllJobsHandler(c *gin.Context) {
	jobs := app.Jobs.GetAllJobs()

	jobList := make([]gin.H, 0, len(jobs))
	for _, job := range jobs {
		jobList = append(jobList, jobResponse(job))
	}

	c.JSON(http.StatusOK, jobList)
}

// downloadHandler handles the GET /api/jobs/:job_id/download endpoint
func (app *App) downloadHandler(c *gin.Context) {
	job, exists := app.Jobs.getJob(c.Param("job_id"))
	if !exists {
		c.JSON(http.StatusNotFound, gin.H{"error": "Job not found"})
		return
	}
	if job.Status != statusCompleted {
		c.JSON(http.StatusConflict, gin.H{"error": fmt.Sprintf("Job is %s", job.Status)})
		return
	}
	if _, err := os.Stat(job.OutputPath); err != nil {
		log.Errorf("Output of job %s is missing: %v", job.ID, err)
		c.JSON(http.StatusGone, gin.H{"error": "Output file is no longer available"})
		return
	}
	c.FileAttachment(job.OutputPath, filepath.Base(job.OutputPath))
}

func (app *App) cancelJobHandler(c *gin.Context) {
	jobID := c.Param("job_id")
	if _, exists := app.Jobs.getJob(jobID); !exists {
		c.JSON(http.StatusNotFound, gin.H{"error": "Job not found"})
		return
	}
	if !app.Jobs.cancelJob(jobID) {
		c.JSON(http.StatusConflict, gin.H{"error": "Job is already finished"})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"job_id": jobID, "status": "cancelling"})
}

func (app *App) getHistoryHandler(c *gin.Context) {
	records, err := GetTranslationRecords(app.Database, historyLimit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve translation history"})
		log.Errorf("Failed to retrieve translation history: %v", err)
		return
	}
	c.JSON(http.StatusOK, records)
}

// healthHandler reports whether the translation service and the OCR engine are usable
func (app *App) healthHandler(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	status := http.StatusOK
	response := gin.H{}

	response["translator"] = "ok"
	if checker, ok := app.Translator.(availabilityChecker); ok {
		if err := checker.Available(ctx); err != nil {
			response["translator"] = err.Error()
			status = http.StatusServiceUnavailable
		}
	}

	// OCR is optional, an unusable engine only degrades scanned pages
	response["ocr"] = "disabled"
	if app.OCR != nil {
		response["ocr"] = "ok"
		if err := app.OCR.Available(ctx); err != nil {
			response["ocr"] = err.Error()
		}
	}

	c.JSON(status, response)
}
