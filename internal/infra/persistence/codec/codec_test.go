package codec

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"roster/pkg/domain"

	json "github.com/goccy/go-json"
)

func sampleSnapshot(t *testing.T) domain.Snapshot {
	t.Helper()
	s, err := domain.NewStandard("John", domain.WithRank(domain.RankSergeant))
	if err != nil {
		t.Fatalf("new standard: %v", err)
	}
	raw, err := domain.MarshalSoldier(s)
	if err != nil {
		t.Fatalf("marshal soldier: %v", err)
	}
	return domain.Snapshot{
		SchemaVersion: domain.SchemaVersion,
		RosterID:      "roster-1",
		SavedAt:       time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		Generations:   []uint32{1, 2},
		Soldiers:      map[string]json.RawMessage{"0v1": raw},
	}
}

func TestEncodeDecode(t *testing.T) {
	data, err := Encode(sampleSnapshot(t))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	snap, err := Decode(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if snap.RosterID != "roster-1" || snap.Len() != 1 {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
}

func TestValidateRejectsSchemaViolations(t *testing.T) {
	cases := map[string]string{
		"missing soldiers": `{"schema_version":1,"generations":[]}`,
		"bad key":          `{"schema_version":1,"generations":[1],"soldiers":{"zero":{"type":"standard","name":"A","rank":"Private"}}}`,
		"bad rank":         `{"schema_version":1,"generations":[1],"soldiers":{"0v1":{"type":"standard","name":"A","rank":"Admiral"}}}`,
		"missing type":     `{"schema_version":1,"generations":[1],"soldiers":{"0v1":{"name":"A","rank":"Private"}}}`,
		"negative gen":     `{"schema_version":1,"generations":[-1],"soldiers":{}}`,
		"not json":         `{"schema_version":`,
	}
	for name, doc := range cases {
		if _, err := Decode([]byte(doc)); !errors.Is(err, domain.ErrDeserialization) {
			t.Fatalf("%s: expected deserialization error, got %v", name, err)
		}
	}
}

func TestCompressRoundTrip(t *testing.T) {
	data, _ := Encode(sampleSnapshot(t))
	packed, err := Compress(data)
	if err != nil {
		t.Fatalf("compress: %v", err)
	}
	unpacked, err := Decompress(packed)
	if err != nil {
		t.Fatalf("decompress: %v", err)
	}
	if !bytes.Equal(data, unpacked) {
		t.Fatalf("zstd round trip changed payload")
	}
	if _, err := Decompress([]byte("not zstd")); !errors.Is(err, domain.ErrDeserialization) {
		t.Fatalf("expected deserialization error for garbage, got %v", err)
	}
}
