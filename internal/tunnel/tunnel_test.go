package tunnel

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/myr-db/myr/internal/schema"
)

func TestBufferedRowStreamReplaysRowsThenEOF(t *testing.T) {
	stream := &bufferedRowStream{rows: [][]string{{"1", "a"}, {"2", "b"}}}

	row, ok, err := stream.Next(context.Background())
	if err != nil || !ok || len(row.Values) != 2 || row.Values[0] != "1" {
		t.Fatalf("first Next() = (%+v, %v, %v)", row, ok, err)
	}
	_, ok, err = stream.Next(context.Background())
	if err != nil || !ok {
		t.Fatalf("second Next() ok = %v, err = %v, want ok", ok, err)
	}
	_, ok, err = stream.Next(context.Background())
	if err != nil || ok {
		t.Fatalf("third Next() = (ok=%v, err=%v), want EOF", ok, err)
	}
}

func TestBufferedRowStreamHonorsCancelledContext(t *testing.T) {
	stream := &bufferedRowStream{rows: [][]string{{"1"}}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := stream.Next(ctx)
	if err == nil {
		t.Fatal("Next() with a cancelled context should return an error")
	}
}

func TestRequestResponseRoundTripThroughJSON(t *testing.T) {
	req := request{Kind: kindQuery, SQL: "SELECT 1"}
	body, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("Marshal(request): %v", err)
	}
	var decoded request
	if err := json.Unmarshal(body, &decoded); err != nil {
		t.Fatalf("Unmarshal(request): %v", err)
	}
	if decoded.Kind != kindQuery || decoded.SQL != "SELECT 1" {
		t.Fatalf("decoded = %+v, want a round-tripped query request", decoded)
	}

	resp := response{Catalog: &schema.Catalog{Databases: []schema.DatabaseSchema{{Name: "app"}}}}
	body, err = json.Marshal(resp)
	if err != nil {
		t.Fatalf("Marshal(response): %v", err)
	}
	var decodedResp response
	if err := json.Unmarshal(body, &decodedResp); err != nil {
		t.Fatalf("Unmarshal(response): %v", err)
	}
	if decodedResp.Catalog == nil || len(decodedResp.Catalog.Databases) != 1 || decodedResp.Catalog.Databases[0].Name != "app" {
		t.Fatalf("decodedResp = %+v, want the catalog preserved", decodedResp)
	}
}
