package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"device-tracker/internal/models"
)

func TestCreateMappingIsIdempotent(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	triple := env.mappedDevice("IMEI-1", "SN-1", "DEV-1")

	again, err := env.mappings.CreateMapping(ctx, triple, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(env.db.mappings) != 1 {
		t.Fatalf("got %d mappings, want 1", len(env.db.mappings))
	}
	if again.Ref != env.db.mappings[0].Ref || again.SerialNo != "SN-1" {
		t.Errorf("second create returned %+v", again)
	}
}

func TestCreateMappingConcurrent(t *testing.T) {
	env := newTestEnv()
	env.db.seedAlias(models.AliasIMEI, "I")
	env.db.seedAlias(models.AliasSerial, "S")
	env.db.seedAlias(models.AliasDeviceID, "D")
	triple := models.AliasTriple{IMEI: "I", SerialNo: "S", DeviceID: "D"}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := env.mappings.CreateMapping(context.Background(), triple, 1); err != nil {
				t.Errorf("CreateMapping: %v", err)
			}
		}()
	}
	wg.Wait()
	if len(env.db.mappings) != 1 {
		t.Errorf("got %d mappings, want 1", len(env.db.mappings))
	}
}

func TestCreateMappingRequiresWhitelistedAliases(t *testing.T) {
	env := newTestEnv()
	env.db.seedAlias(models.AliasIMEI, "I")
	env.db.seedAlias(models.AliasSerial, "S")

	_, err := env.mappings.CreateMapping(context.Background(), models.AliasTriple{IMEI: "I", SerialNo: "S", DeviceID: "D"}, 1)
	if !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("got %v, want not found", err)
	}
	_, err = env.mappings.CreateMapping(context.Background(), models.AliasTriple{IMEI: "I"}, 1)
	if !errors.Is(err, models.ErrValidation) {
		t.Fatalf("got %v, want validation error", err)
	}
	if len(env.db.mappings) != 0 {
		t.Error("mapping created from an incomplete triple")
	}
}

func TestResolveFromAnyAlias(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	env.mappedDevice("IMEI-1", "SN-1", "DEV-1")

	for _, q := range []models.AliasQuery{
		{ID: "IMEI-1", Type: models.AliasIMEI},
		{ID: "SN-1", Type: models.AliasSerial},
		{ID: "DEV-1", Type: "deviceid"},
	} {
		device, err := env.resolver.ResolveToCanonicalDevice(ctx, q.ID, q.Type)
		if err != nil {
			t.Fatalf("%s: %v", q.ID, err)
		}
		if device.IMEI.AliasID != "IMEI-1" || device.Mapping == nil {
			t.Errorf("%s resolved to %+v", q.ID, device)
		}
		m, err := env.mappings.ResolveMapping(ctx, q.ID, q.Type)
		if err != nil || m.DeviceID != "DEV-1" {
			t.Errorf("%s: ResolveMapping = %+v, %v", q.ID, m, err)
		}
	}
}

func TestResolveUnmappedAliases(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	env.db.seedAlias(models.AliasIMEI, "LONE-IMEI")
	env.db.seedAlias(models.AliasSerial, "LONE-SN")

	device, err := env.resolver.ResolveToCanonicalDevice(ctx, "LONE-IMEI", models.AliasIMEI)
	if err != nil {
		t.Fatalf("unmapped IMEI should resolve to itself: %v", err)
	}
	if device.Mapping != nil || device.IMEI.AliasID != "LONE-IMEI" {
		t.Errorf("got %+v", device)
	}

	if _, err := env.resolver.ResolveToCanonicalDevice(ctx, "LONE-SN", models.AliasSerial); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("unmapped SN: got %v, want not found", err)
	}
	if _, err := env.mappings.ResolveMapping(ctx, "LONE-IMEI", models.AliasIMEI); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("ResolveMapping on unmapped IMEI: got %v, want not found", err)
	}
	if _, err := env.resolver.Lookup(ctx, "x", "MAC"); !errors.Is(err, models.ErrValidation) {
		t.Errorf("unknown type: got %v, want validation error", err)
	}
}

func TestFindAvailableAlias(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	env.mappedDevice("I1", "SN-0001", "D-0001")
	env.db.seedAlias(models.AliasSerial, "SN-0003")
	env.db.seedAlias(models.AliasSerial, "SN-0002")
	env.db.seedAlias(models.AliasDeviceID, "D-0002")

	avail, err := env.mappings.Available(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if avail.SerialNo.AliasID != "SN-0002" || avail.DeviceID.AliasID != "D-0002" {
		t.Errorf("got %s / %s", avail.SerialNo.AliasID, avail.DeviceID.AliasID)
	}

	if _, err := env.mappings.FindAvailableAlias(ctx, models.AliasIMEI); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("no free IMEI: got %v", err)
	}
}

func TestUpdateMapping(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	env.mappedDevice("I1", "S1", "D1")
	env.mappedDevice("I2", "S2", "D2")
	env.db.seedAlias(models.AliasSerial, "S3")
	ref := env.db.mappings[0].Ref

	updated, err := env.mappings.UpdateMapping(ctx, ref, models.UpdateMappingRequest{SerialNo: "S3"})
	if err != nil {
		t.Fatal(err)
	}
	if updated.SerialNo != "S3" || updated.IMEI != "I1" {
		t.Errorf("got %+v", updated)
	}

	if _, err := env.mappings.UpdateMapping(ctx, ref, models.UpdateMappingRequest{DeviceID: "D2"}); !errors.Is(err, models.ErrDuplicate) {
		t.Errorf("stealing another device's alias: got %v, want duplicate", err)
	}
	if _, err := env.mappings.UpdateMapping(ctx, ref, models.UpdateMappingRequest{IMEI: "I1"}); !errors.Is(err, models.ErrValidation) {
		t.Errorf("no-op update: got %v, want validation error", err)
	}
}
