// Package logger builds the slog loggers used across notifykit and defines
// the attribute helpers that keep field names consistent.
//
// New builds a JSON or text slog handler from the options and, when context
// extractors are registered, wraps it so every record logged with a context
// gets the extracted attributes.
//
// Helper constructors such as Error, JobID, WorkerID and Channel live in
// attr.go so attribute names stay consistent across the dispatch pipeline.
// WithJob and WithWorker store ids in a context; JobExtractor and
// WorkerExtractor add them to every record logged with that context.
//
// # Usage
//
//	import "github.com/dmitrymomot/notifykit/pkg/logger"
//
//	func main() {
//	    log := logger.FromConfig(cfg.Log)
//	    logger.SetAsDefault(log)
//
//	    ctx := logger.WithJob(context.Background(), job.ID)
//	    log.InfoContext(ctx, "delivered",
//	        logger.Channel("email"),
//	        logger.Duration(time.Since(start)),
//	    )
//	}
//
// # Configuration
//
// Options:
//
//   - WithEnvironment: level and format per environment, plus service and env attributes.
//   - WithFormat, WithLevel, WithOutput, WithSource.
//   - WithAttr: static attributes.
//   - WithContextExtractors: attributes pulled from the context.
//
// FromConfig applies a Config loaded from APP_ENV, APP_NAME, LOG_LEVEL and
// LOG_FORMAT and registers the job and worker extractors.
//
// # Error Handling
//
// Helper functions Error and Errors produce attributes only when the supplied
// error value is non-nil allowing calls like:
//
//	log.Info("operation succeeded", logger.Error(err))
//
// without an additional nil check.
package logger
