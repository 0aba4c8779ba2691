// Package logx configures tgwatch's structured logging.
//
// This repo uses a small wrapper (logx.Logger) on top of zerolog to keep:
//   - Console output readable (short timestamp + short caller)
//   - File output JSON-structured
//
// Components derive their logger with With(logx.String("comp", ...)) so every
// line carries its origin. The Service can re-Apply() output configuration at
// runtime without invalidating loggers that were created from it.
package logx
