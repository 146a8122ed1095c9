package ingest

import (
	"io"

	"honnef.co/go/tracehist/histogram"

	"github.com/go-json-experiment/json"
	"github.com/go-json-experiment/json/jsontext"
	"github.com/pkg/errors"
)

// JSONSource reads a stream of JSON objects, one per record. Supported objects are
//
//	{"ts": 1234, "source": "cpu0"}
//	{"lost": {"start": 1000, "end": 2000, "count": 17}}
//	{"sources": ["cpu0", "cpu1"]}
//
// Objects don't have to be separated by newlines. Without a source list, all events are attributed to the model's
// first counter.
type JSONSource struct {
	dec *jsontext.Decoder
	n   int
}

type jsonLost struct {
	Start int64 `json:"start"`
	End   int64 `json:"end"`
	Count int64 `json:"count"`
}

type jsonRecord struct {
	TS      *int64               `json:"ts"`
	Source  histogram.SourceID   `json:"source"`
	Lost    *jsonLost            `json:"lost"`
	Sources []histogram.SourceID `json:"sources"`
}

func NewJSONSource(r io.Reader) *JSONSource {
	return &JSONSource{dec: jsontext.NewDecoder(r)}
}

func (src *JSONSource) Next() (Record, error) {
	var rec jsonRecord
	if err := json.UnmarshalDecode(src.dec, &rec); err != nil {
		if errors.Is(err, io.EOF) {
			return Record{}, io.EOF
		}
		return Record{}, errors.Wrapf(err, "couldn't decode JSON record %d", src.n+1)
	}
	src.n++

	switch {
	case rec.TS != nil:
		return Record{Kind: KindEvent, Time: *rec.TS, Source: rec.Source}, nil
	case rec.Lost != nil:
		return Record{Kind: KindLost, Start: rec.Lost.Start, End: rec.Lost.End, Count: rec.Lost.Count}, nil
	case rec.Sources != nil:
		return Record{Kind: KindSources, Sources: rec.Sources}, nil
	default:
		return Record{}, errors.Errorf("JSON record %d is neither an event, lost events nor a source list", src.n)
	}
}
