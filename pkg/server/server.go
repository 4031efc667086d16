package server

import (
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/walkabout/scorecard/pkg/logger"
	"github.com/walkabout/scorecard/pkg/media"
	"github.com/walkabout/scorecard/pkg/scorecard"
)

const (
	// FormField is the multipart field holding the scorecard images.
	FormField = "images"

	// MaxFileSize caps a single uploaded image.
	MaxFileSize = 20 << 20

	// MaxUploadSize caps the whole request body.
	MaxUploadSize = scorecard.MaxImages*MaxFileSize + 1<<20

	RequestIDHeader = "X-Request-ID"
)

// New builds the HTTP server for parser listening on addr. Gin's debug
// output is only enabled when the logger is at debug level.
func New(parser *scorecard.Parser, addr string) *http.Server {
	if logger.DebugEnabled() {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())
	router.MaxMultipartMemory = MaxUploadSize
	RegisterRoutes(router, parser)

	return &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// RegisterRoutes wires the HTTP handlers to the Gin router.
func RegisterRoutes(router *gin.Engine, parser *scorecard.Parser) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.POST("/parse", func(c *gin.Context) {
		single, err := queryBool(c, "single")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "single must be a boolean"})
			return
		}
		indent, err := queryBool(c, "format")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "format must be a boolean"})
			return
		}

		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxUploadSize)
		form, err := c.MultipartForm()
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "request body too large"})
				return
			}
			c.JSON(http.StatusBadRequest, gin.H{"error": "multipart form with field " + FormField + " is required"})
			return
		}

		files := form.File[FormField]
		if err := scorecard.ValidateCount(len(files), single); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		units := make([]*media.ImageUnit, 0, len(files))
		for _, file := range files {
			if file.Size > MaxFileSize {
				c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": file.Filename + " is too large"})
				return
			}
			data, err := readPart(file)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "unable to read " + file.Filename})
				return
			}
			unit, err := parser.Normalizer().NormalizeBytes(file.Filename, data)
			if err != nil {
				writeError(c, err)
				return
			}
			units = append(units, unit)
		}
		media.DedupeLabels(units)

		result, err := parser.Parse(c.Request.Context(), units, single)
		if err != nil {
			writeError(c, err)
			return
		}

		c.Header(RequestIDHeader, result.RequestID)
		c.Data(http.StatusOK, "application/json; charset=utf-8", scorecard.Render(result.JSON, indent))
	})
}

func queryBool(c *gin.Context, key string) (bool, error) {
	v, ok := c.GetQuery(key)
	if !ok || v == "" {
		return false, nil
	}
	return strconv.ParseBool(v)
}

func readPart(file *multipart.FileHeader) ([]byte, error) {
	src, err := file.Open()
	if err != nil {
		return nil, err
	}
	defer src.Close()
	return io.ReadAll(src)
}

// StatusFor maps a pipeline error to an HTTP status code.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, scorecard.ErrUsage):
		return http.StatusBadRequest
	case errors.Is(err, media.ErrUnsupportedFormat):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, scorecard.ErrAPICall), errors.Is(err, scorecard.ErrResponseParse):
		return http.StatusBadGateway
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeError(c *gin.Context, err error) {
	var op *scorecard.OpError
	if errors.As(err, &op) && op.RequestID != "" {
		c.Header(RequestIDHeader, op.RequestID)
	}
	c.JSON(StatusFor(err), gin.H{"error": err.Error()})
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.InfoCF("http", "Request handled", logger.Fields{
			"method":      c.Request.Method,
			"path":        c.FullPath(),
			"status":      c.Writer.Status(),
			"duration_ms": time.Since(start).Milliseconds(),
			"request_id":  c.Writer.Header().Get(RequestIDHeader),
		})
	}
}

// Serve runs server until it fails or SIGINT/SIGTERM arrives, then shuts it
// down, giving in-flight requests up to shutdownTimeout to finish.
func Serve(server *http.Server, shutdownTimeout time.Duration) error {
	return ServeWithOptions(server, shutdownTimeout, nil, nil)
}

// ServeWithOptions is Serve with an optional pre-bound listener and signal
// channel. A nil signalCh subscribes to SIGINT and SIGTERM.
func ServeWithOptions(server *http.Server, shutdownTimeout time.Duration, listener net.Listener, signalCh <-chan os.Signal) error {
	log := logger.Zap().With(zap.String("component", "http"))

	errCh := make(chan error, 1)
	go func() {
		var err error
		if listener != nil {
			err = server.Serve(listener)
		} else {
			err = server.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		errCh <- err
	}()

	var (
		sigCh       <-chan os.Signal
		stopSignals func()
	)

	if signalCh != nil {
		sigCh = signalCh
		stopSignals = func() {}
	} else {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
		sigCh = ch
		stopSignals = func() {
			signal.Stop(ch)
		}
	}
	defer stopSignals()

	select {
	case err := <-errCh:
		return err
	case sig, ok := <-sigCh:
		if !ok {
			return <-errCh
		}
		log.Info("received shutdown signal", zap.String("signal", sig.String()))
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return <-errCh
	}
}
