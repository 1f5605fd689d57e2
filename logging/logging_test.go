package logging

import (
	"go.uber.org/zap/zapcore"
	"go.viam.com/test"
	"testing"
)

func TestNew(t *testing.T) {

	for _, level := range []string{"debug", "info", "warn", "error"} {
		logger, err := New("yolocam", level, false)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, logger, test.ShouldNotBeNil)
	}

	logger, err := New("yolocam", "warn", true)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, logger.Desugar().Core().Enabled(zapcore.InfoLevel), test.ShouldBeFalse)
	test.That(t, logger.Desugar().Core().Enabled(zapcore.WarnLevel), test.ShouldBeTrue)

	_, err = New("yolocam", "loud", false)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestObservedTestLogger(t *testing.T) {

	logger, logs := NewObservedTestLogger(t)

	logger.Debugw("first", "n", 1)
	logger.Warnw("second")

	test.That(t, logs.Len(), test.ShouldEqual, 2)
	test.That(t, logs.FilterMessage("first").All()[0].Level, test.ShouldEqual, zapcore.DebugLevel)
	test.That(t, logs.FilterLevelExact(zapcore.WarnLevel).Len(), test.ShouldEqual, 1)
}
