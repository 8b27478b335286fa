package transmitter

import (
	"fmt"

	"github.com/celskeggs/streamthrough/sim/model"
	"github.com/celskeggs/streamthrough/sim/signal"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

var (
	// ErrContractViolation is raised (by panic) when an operation is invoked in a state where the surrounding
	// pipeline promised it never would be.
	ErrContractViolation = errors.New("transmitter contract violation")
	ErrBufferUnderrun    = errors.New("buffer underrun during transmission")
)

// BufferUnderrunError is raised (by panic) when the producer falls so far behind that the transmitter would
// have to send data it does not have. Deliveries already made downstream cannot be taken back, so the
// simulation cannot continue.
type BufferUnderrunError struct {
	Transmitter    string
	Unit           *signal.Unit
	At             model.VirtualTime
	InputPosition  signal.Bits
	OutputPosition signal.Bits
	InputDatarate  signal.Datarate
	Datarate       signal.Datarate
}

func (e *BufferUnderrunError) Error() string {
	return fmt.Sprintf("%v: %s: buffer underrun while sending %v: input reached %v at %v, output reached %v at %v",
		e.At, e.Transmitter, e.Unit, e.InputPosition, e.InputDatarate, e.OutputPosition, e.Datarate)
}

func (e *BufferUnderrunError) Unwrap() error {
	return ErrBufferUnderrun
}

func (t *Transmitter) violation(format string, args ...interface{}) {
	err := errors.Wrapf(ErrContractViolation, "%v: %s: %s", t.ctx.Now(), t.config.Name, fmt.Sprintf(format, args...))
	t.logger.Error("contract violation", zap.Error(err))
	panic(err)
}
