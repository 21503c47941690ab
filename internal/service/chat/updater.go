package chat

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/seeky-chat/seeky/backend/internal/model/chat"
)

// FragmentSource yields reply fragments until io.EOF.
type FragmentSource interface {
	Next() (string, error)
}

// Accumulate merges fragments into the entry with id, publishing the cumulative
// text after each one. If the source fails, the entry is overwritten with
// chat.ErrorReply and the source error is returned.
func Accumulate(store *Store, id string, fragments FragmentSource) (string, error) {
	var text strings.Builder

	for {
		fragment, err := fragments.Next()
		if errors.Is(err, io.EOF) {
			return text.String(), nil
		}
		if err != nil {
			if updateErr := store.UpdateByID(id, chat.ErrorReply); updateErr != nil {
				return "", errors.Join(err, fmt.Errorf("mark reply failed: %w", updateErr))
			}
			return chat.ErrorReply, err
		}

		text.WriteString(fragment)
		if err := store.UpdateByID(id, text.String()); err != nil {
			return text.String(), fmt.Errorf("update reply %s: %w", id, err)
		}
	}
}
