package component

import (
	"encoding/csv"
	"encoding/hex"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/celskeggs/streamthrough/sim/model"
	"github.com/celskeggs/streamthrough/sim/signal"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
)

var recordingHeader = []string{
	"Nanoseconds", "Channel", "Event", "Position", "Elapsed Nanoseconds", "Length", "Bit Error", "Hex Bytes",
}

// TxRecorder writes every recorded transmission event as a CSV row. The first write error is kept and
// reported by Close; later events are discarded.
type TxRecorder struct {
	sim    model.SimContext
	closer io.Closer
	output *csv.Writer
	err    error
}

func (r *TxRecorder) IsRecording() bool {
	return r.output != nil
}

func (r *TxRecorder) Record(channel string, event string, unit *signal.Unit, position signal.Bits, elapsed time.Duration) {
	if channel == "" || event == "" {
		panic("invalid empty channel or event name")
	}
	if r.output == nil || r.err != nil {
		// not recording; discard
		return
	}
	bitError := "0"
	if unit.BitError {
		bitError = "1"
	}
	err := r.output.Write([]string{
		strconv.FormatUint(r.sim.Now().Nanoseconds(), 10),
		channel,
		event,
		strconv.FormatInt(int64(position), 10),
		strconv.FormatInt(elapsed.Nanoseconds(), 10),
		strconv.FormatInt(int64(unit.Length), 10),
		bitError,
		hex.EncodeToString(unit.Data),
	})
	r.output.Flush()
	if err == nil {
		err = r.output.Error()
	}
	if err != nil {
		r.err = errors.Wrap(err, "cannot write recording")
	}
}

func (r *TxRecorder) Close() error {
	if r.output == nil {
		return nil
	}
	var result *multierror.Error
	if r.err != nil {
		result = multierror.Append(result, r.err)
	}
	if r.closer != nil {
		if err := r.closer.Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	r.output = nil
	return result.ErrorOrNil()
}

func MakeNullRecorder() *TxRecorder {
	return &TxRecorder{
		output: nil,
	}
}

// MakeRecorder writes a recording to w, which is closed by Close if it is an io.Closer.
func MakeRecorder(sim model.SimContext, w io.Writer) (*TxRecorder, error) {
	cw := csv.NewWriter(w)
	err := cw.Write(recordingHeader)
	cw.Flush()
	if err == nil {
		err = cw.Error()
	}
	if err != nil {
		return nil, errors.Wrap(err, "cannot write recording header")
	}
	closer, _ := w.(io.Closer)
	return &TxRecorder{
		sim:    sim,
		closer: closer,
		output: cw,
	}, nil
}

func MakeCSVRecorder(sim model.SimContext, path string) (*TxRecorder, error) {
	w, err := os.Create(path)
	if err != nil {
		return nil, errors.Wrap(err, "cannot create recording")
	}
	r, err := MakeRecorder(sim, w)
	if err != nil {
		return nil, multierror.Append(err, w.Close())
	}
	return r, nil
}

type Record struct {
	Timestamp model.VirtualTime
	Channel   string
	Event     string
	Position  signal.Bits
	Elapsed   time.Duration
	Length    signal.Bits
	BitError  bool
	Bytes     []byte
}

func parseInt(field, name string) (int64, error) {
	value, err := strconv.ParseInt(field, 10, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid %s", name)
	}
	if value < 0 {
		return 0, errors.Errorf("negative %s: %d", name, value)
	}
	return value, nil
}

func decodeRecord(record []string) (Record, error) {
	if len(record) != len(recordingHeader) {
		return Record{}, errors.Errorf("invalid data record: %v", record)
	}
	// decode timestamp
	timestampNS, err := strconv.ParseUint(record[0], 10, 64)
	if err != nil {
		return Record{}, errors.Wrap(err, "invalid timestamp")
	}
	timestamp, ok := model.FromNanoseconds(timestampNS)
	if !ok {
		return Record{}, errors.Errorf("invalid timestamp: %v", record[0])
	}
	if record[1] == "" || record[2] == "" {
		return Record{}, errors.New("invalid empty channel or event")
	}
	position, err := parseInt(record[3], "position")
	if err != nil {
		return Record{}, err
	}
	elapsed, err := parseInt(record[4], "elapsed time")
	if err != nil {
		return Record{}, err
	}
	length, err := parseInt(record[5], "length")
	if err != nil {
		return Record{}, err
	}
	if record[6] != "0" && record[6] != "1" {
		return Record{}, errors.Errorf("invalid bit error flag: %q", record[6])
	}
	dataBytes, err := hex.DecodeString(record[7])
	if err != nil {
		return Record{}, errors.Wrap(err, "invalid hex bytes")
	}
	if signal.Bits(length).Bytes() != len(dataBytes) {
		return Record{}, errors.Errorf("length %d does not match %d bytes", length, len(dataBytes))
	}
	return Record{
		Timestamp: timestamp,
		Channel:   record[1],
		Event:     record[2],
		Position:  signal.Bits(position),
		Elapsed:   time.Duration(elapsed),
		Length:    signal.Bits(length),
		BitError:  record[6] == "1",
		Bytes:     dataBytes,
	}, nil
}

func DecodeRecording(path string) (records []Record, re error) {
	r, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := r.Close(); err != nil {
			re = multierror.Append(re, err)
		}
	}()
	recordsRaw, err := csv.NewReader(r).ReadAll()
	if err != nil {
		return nil, err
	}
	if len(recordsRaw) < 1 {
		return nil, errors.New("no header found")
	}
	if len(recordsRaw[0]) != len(recordingHeader) {
		return nil, errors.Errorf("invalid header: %v", recordsRaw[0])
	}
	for i, name := range recordingHeader {
		if recordsRaw[0][i] != name {
			return nil, errors.Errorf("invalid header: %v", recordsRaw[0])
		}
	}
	for i, raw := range recordsRaw[1:] {
		record, err := decodeRecord(raw)
		if err != nil {
			return nil, errors.Wrapf(err, "record %d", i+1)
		}
		records = append(records, record)
	}
	return records, nil
}
