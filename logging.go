package reldb

import "go.uber.org/zap"

// newNopLogger is used by constructors that are not handed an
// explicit logger (mainly tests); production callers should build a
// real *zap.Logger and pass its Sugar() to NewEngine.
func newNopLogger() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}
