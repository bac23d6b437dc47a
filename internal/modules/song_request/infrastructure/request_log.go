package infrastructure

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/sglre6355/reqbox/internal/modules/song_request/application/ports"
	"github.com/sglre6355/reqbox/internal/modules/song_request/domain"
)

const requestLogMessage = "request"

// Compile-time check that FileRequestLog implements ports.RequestRecorder.
var _ ports.RequestRecorder = (*FileRequestLog)(nil)

// FileRequestLog appends admitted requests as JSON lines to a rotated file.
type FileRequestLog struct {
	path   string
	logger *zap.Logger
	sink   *lumberjack.Logger

	// mu orders writes before reads so stats see every recorded line.
	mu sync.Mutex
}

// NewFileRequestLog creates a new FileRequestLog writing to path.
func NewFileRequestLog(path string) (*FileRequestLog, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create request log directory: %w", err)
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "timestamp"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	encoderConfig.CallerKey = zapcore.OmitKey
	encoderConfig.StacktraceKey = zapcore.OmitKey

	sink := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    100, // MB
		MaxBackups: 3,
		MaxAge:     28, // days
		Compress:   true,
	}

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig),
		zapcore.AddSync(sink),
		zapcore.InfoLevel,
	)

	return &FileRequestLog{
		path:   path,
		logger: zap.New(core),
		sink:   sink,
	}, nil
}

type requestLogLine struct {
	Message  string `json:"msg"`
	Username string `json:"username"`
	Label    string `json:"label"`
}

// Record appends one request.
func (l *FileRequestLog) Record(_ context.Context, record domain.RequestRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.logger.Info(requestLogMessage,
		zap.String("username", record.Username),
		zap.String("label", record.Label),
		zap.String("item_id", record.ItemID),
		zap.String("kind", record.Kind),
		zap.Time("admitted_at", record.AdmittedAt),
	)
	return l.logger.Sync()
}

// UserStats scans the current log file. Rotated backups are not included.
func (l *FileRequestLog) UserStats(_ context.Context, username string, limit int) (domain.UserStats, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	stats := domain.UserStats{Username: username}

	file, err := os.Open(l.path)
	if errors.Is(err, fs.ErrNotExist) {
		return stats, nil
	}
	if err != nil {
		return stats, fmt.Errorf("failed to open request log: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var line requestLogLine
		if err := json.Unmarshal(scanner.Bytes(), &line); err != nil {
			continue
		}
		if line.Message != requestLogMessage || line.Username != username {
			continue
		}

		stats.Total++
		stats.Recent = append(stats.Recent, line.Label)
		if limit > 0 && len(stats.Recent) > limit {
			stats.Recent = stats.Recent[1:]
		}
	}
	if err := scanner.Err(); err != nil {
		return stats, fmt.Errorf("failed to read request log: %w", err)
	}

	return stats, nil
}

// Close flushes and closes the log file.
func (l *FileRequestLog) Close() error {
	_ = l.logger.Sync()
	return l.sink.Close()
}
