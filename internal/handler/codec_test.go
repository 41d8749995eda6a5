package handler_test

import (
	"testing"

	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"vetclinic-booking/internal/handler"
)

func TestCodecProtoMessages(t *testing.T) {
	c := handler.Codec{}

	data, err := c.Marshal(&healthpb.HealthCheckResponse{Status: healthpb.HealthCheckResponse_SERVING})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var resp healthpb.HealthCheckResponse
	if err := c.Unmarshal(data, &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Status != healthpb.HealthCheckResponse_SERVING {
		t.Errorf("got %v", resp.Status)
	}

	for _, body := range []string{"", "  ", "{}"} {
		var req healthpb.HealthCheckRequest
		if err := c.Unmarshal([]byte(body), &req); err != nil {
			t.Errorf("%q: %v", body, err)
		}
	}
	var req healthpb.HealthCheckRequest
	if err := c.Unmarshal([]byte(`{"services":"x"}`), &req); err == nil {
		t.Error("expected unknown field error")
	}
}
