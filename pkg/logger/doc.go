// Package logger provides structured logging for the geodata extractor.
//
// It wraps zerolog behind a small interface so the rest of the code can log
// with fields without depending on the library directly:
//
//	cfg := &config.LoggingConfig{
//	    Level: "info",
//	    File:  "/var/log/flickrgeo.log",
//	}
//	err := logger.Initialize(cfg)
//
//	logger.Info("extraction started")
//	logger.WithField("cell", 3).Info("cell completed")
//	logger.WithError(err).Error("search query failed")
//
// Console output goes to stderr so it never interleaves with exported data.
// When a file is configured, output is duplicated to it in JSON form.
//
// NewTestLogger returns an implementation that captures messages in memory
// for assertions in tests.
package logger
