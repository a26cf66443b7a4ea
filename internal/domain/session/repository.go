package session

import (
	"context"
	"encoding/json"
	"fmt"
)

// Repository checkpoints session states between events.
// Implementations live in infrastructure/persistence.
type Repository interface {
	// Get returns the stored state or shared.ErrNotFound.
	Get(ctx context.Context, telegramID int64) (State, error)

	// Save stores st if the stored version equals st.Version, then increments
	// st.Version. A lost race returns shared.ErrVersionConflict.
	Save(ctx context.Context, st *State) error

	// Delete removes the state. Deleting a missing state is not an error.
	Delete(ctx context.Context, telegramID int64) error

	// Close releases the underlying resources.
	Close() error
}

// Codec turns states into bytes for key-value drivers.
type Codec interface {
	Marshal(st State) ([]byte, error)
	Unmarshal(data []byte) (State, error)
}

// JSONCodec is the plain JSON codec.
type JSONCodec struct{}

// Marshal implements Codec.
func (JSONCodec) Marshal(st State) ([]byte, error) {
	data, err := json.Marshal(st)
	if err != nil {
		return nil, fmt.Errorf("marshal session %d: %w", st.TelegramID, err)
	}
	return data, nil
}

// Unmarshal implements Codec.
func (JSONCodec) Unmarshal(data []byte) (State, error) {
	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return State{}, fmt.Errorf("unmarshal session: %w", err)
	}
	return st, nil
}
