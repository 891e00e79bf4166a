package traffic

import (
	"errors"
	"testing"
)

func TestValidateCoordinates(t *testing.T) {
	tests := []struct {
		name    string
		lat     float64
		lng     float64
		wantErr bool
	}{
		{"valid", 52.52, 13.405, false},
		{"boundary lat", 90, 0, false},
		{"boundary lng", 0, -180, false},
		{"lat too high", 90.1, 0, true},
		{"lat too low", -91, 0, true},
		{"lng too high", 0, 181, true},
		{"lng too low", 0, -180.5, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateCoordinates(tt.lat, tt.lng)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateCoordinates(%v, %v) error = %v, wantErr %v", tt.lat, tt.lng, err, tt.wantErr)
			}
			if err != nil {
				var verr *ValidationError
				if !errors.As(err, &verr) {
					t.Errorf("error %v is not a *ValidationError", err)
				}
			}
		})
	}
}

func TestValidateRadius(t *testing.T) {
	if err := ValidateRadius(DefaultRadiusMeters); err != nil {
		t.Errorf("default radius should be valid, got %v", err)
	}
	if err := ValidateRadius(99); err == nil {
		t.Error("radius below minimum should be rejected")
	}
	if err := ValidateRadius(5001); err == nil {
		t.Error("radius above maximum should be rejected")
	}
}

func TestValidateWaypoints(t *testing.T) {
	valid := []Waypoint{{Latitude: 52.5, Longitude: 13.4}, {Latitude: 52.6, Longitude: 13.5}}
	if err := ValidateWaypoints(valid); err != nil {
		t.Errorf("two valid waypoints should pass, got %v", err)
	}

	if err := ValidateWaypoints(valid[:1]); err == nil {
		t.Error("single waypoint should be rejected")
	}

	bad := []Waypoint{{Latitude: 52.5, Longitude: 13.4}, {Latitude: 95, Longitude: 13.5}}
	if err := ValidateWaypoints(bad); err == nil {
		t.Error("out-of-range waypoint should be rejected")
	}
}
