package signal

import (
	"github.com/celskeggs/streamthrough/sim/util"
	"github.com/pkg/errors"
)

// LinearEncoder puts the unit's bits on the medium as-is, so that the signal lasts exactly Length/Datarate.
type LinearEncoder struct{}

var _ Encoder = LinearEncoder{}

func (LinearEncoder) Encode(unit *Unit, datarate Datarate) *Signal {
	return &Signal{
		Unit:     unit,
		Datarate: datarate,
		Symbols:  util.MaskTrailingBits(unit.Data, int64(unit.Length)),
		Length:   unit.Length,
		Duration: datarate.Duration(unit.Length),
	}
}

func (LinearEncoder) Decode(sig *Signal) (*Unit, error) {
	if sig.Length.Bytes() != len(sig.Symbols) {
		return nil, errors.Errorf("%v symbols do not match signal length %v", len(sig.Symbols), sig.Length)
	}
	u := MakeUnitBits(sig.Unit.ID, sig.Unit.Name, sig.Symbols, sig.Length)
	u.BitError = sig.Unit.BitError
	return u, nil
}
