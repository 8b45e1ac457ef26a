package maze

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateResult(t *testing.T) {
	tests := []struct {
		name    string
		plan    string
		labels  []Label
		wantErr string
	}{
		{name: "empty plan", plan: "", labels: []Label{2}},
		{name: "doors", plan: "00", labels: []Label{0, 1, 0}},
		{name: "mark echo", plan: "0[3]", labels: []Label{0, 1, 3}},
		{name: "too few labels", plan: "00", labels: []Label{0, 1}, wantErr: "expected 3 labels"},
		{name: "too many labels", plan: "", labels: []Label{0, 1}, wantErr: "expected 1 labels"},
		{name: "label out of range", plan: "0", labels: []Label{0, 4}, wantErr: "out of range"},
		{name: "wrong echo", plan: "[3]", labels: []Label{0, 2}, wantErr: "echoed label 2"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateResult(MustParsePlan(tt.plan), tt.labels)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			if assert.Error(t, err) {
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

// selfLoopMap is a single room whose doors all lead back to itself.
func selfLoopMap() *Map {
	m := &Map{Rooms: []Label{2}}
	for d := Door(0); d < Doors; d++ {
		m.Connections = append(m.Connections, Connection{
			From: RoomDoor{Room: 0, Door: d},
			To:   RoomDoor{Room: 0, Door: d},
		})
	}
	return m
}

func TestMapValidate(t *testing.T) {
	t.Run("self loops are valid", func(t *testing.T) {
		assert.NoError(t, selfLoopMap().Validate())
	})

	t.Run("missing door", func(t *testing.T) {
		m := selfLoopMap()
		m.Connections = m.Connections[:5]
		err := m.Validate()
		if assert.Error(t, err) {
			assert.Contains(t, err.Error(), "room 0 door 5 is not connected")
		}
	})

	t.Run("door used twice", func(t *testing.T) {
		m := selfLoopMap()
		m.Connections[5].To.Door = 0
		err := m.Validate()
		if assert.Error(t, err) {
			assert.Contains(t, err.Error(), "used by 2 connections")
		}
	})

	t.Run("bad starting room", func(t *testing.T) {
		m := selfLoopMap()
		m.StartingRoom = 3
		assert.Error(t, m.Validate())
	})

	t.Run("destination", func(t *testing.T) {
		m := selfLoopMap()
		assert.Equal(t, 0, m.Destination(0, 4))
		assert.Equal(t, -1, m.Destination(1, 4))
	})
}
