// Package logx configures sioux's structured logging.
//
// A small wrapper (logx.Logger) on top of zerolog keeps console output
// readable (short timestamp, short caller) and file output as JSON lines.
// Service.Apply swaps sinks and level at runtime for config hot reload.
package logx
