// Package cache provides the principal session cache backends and the snapshot format they store.
package cache

import (
	"bytes"
	"encoding/binary"
	"io"
	"math"
	"time"

	"phonebook/internal/domain/entity"
	"phonebook/internal/domain/service"
	"phonebook/internal/errors"

	"github.com/google/uuid"
)

const (
	snapshotVersionCurrent = 2
)

// ErrUnknownSnapshotVersion is returned for snapshots written by an incompatible build.
var ErrUnknownSnapshotVersion = errors.New("unknown snapshot version")

const (
	flagConfirmed    = 1 << 0
	flagRefreshToken = 1 << 1
	flagAvatarURL    = 1 << 2
)

// EncodeUser serializes the principal into the current snapshot format:
// version byte, 16-byte id, flags byte, length-prefixed strings, then timestamps as unix seconds + nanoseconds.
func EncodeUser(u *entity.User) ([]byte, error) {
	if u == nil {
		return nil, errors.New("nil user")
	}

	var buf bytes.Buffer
	buf.WriteByte(snapshotVersionCurrent)
	buf.Write(u.ID[:])

	var flags byte
	if u.Confirmed {
		flags |= flagConfirmed
	}
	if u.RefreshToken != nil {
		flags |= flagRefreshToken
	}
	if u.AvatarURL != nil {
		flags |= flagAvatarURL
	}
	buf.WriteByte(flags)

	fields := []string{u.Email, u.Name, u.PasswordHash, u.Role.String()}
	if u.RefreshToken != nil {
		fields = append(fields, *u.RefreshToken)
	}
	if u.AvatarURL != nil {
		fields = append(fields, *u.AvatarURL)
	}
	for _, field := range fields {
		if err := writeString(&buf, field); err != nil {
			return nil, err
		}
	}

	for _, ts := range []time.Time{u.CreatedAt, u.UpdatedAt} {
		if err := writeTime(&buf, ts); err != nil {
			return nil, err
		}
	}

	return buf.Bytes(), nil
}

// DecodeUser parses a snapshot. A snapshot from an unknown version yields ErrUnknownSnapshotVersion.
func DecodeUser(data []byte) (*entity.User, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, errors.Wrap(err, "read snapshot version")
	}
	if version != snapshotVersionCurrent {
		return nil, ErrUnknownSnapshotVersion
	}

	u := &entity.User{}
	if _, err := io.ReadFull(reader, u.ID[:]); err != nil {
		return nil, errors.Wrap(err, "read user id")
	}

	flags, err := reader.ReadByte()
	if err != nil {
		return nil, errors.Wrap(err, "read flags")
	}
	u.Confirmed = flags&flagConfirmed != 0

	if u.Email, err = readString(reader); err != nil {
		return nil, errors.Wrap(err, "read email")
	}
	if u.Name, err = readString(reader); err != nil {
		return nil, errors.Wrap(err, "read name")
	}
	if u.PasswordHash, err = readString(reader); err != nil {
		return nil, errors.Wrap(err, "read password hash")
	}
	role, err := readString(reader)
	if err != nil {
		return nil, errors.Wrap(err, "read role")
	}
	u.Role = entity.Role(role)

	if flags&flagRefreshToken != 0 {
		token, err := readString(reader)
		if err != nil {
			return nil, errors.Wrap(err, "read refresh token")
		}
		u.RefreshToken = &token
	}
	if flags&flagAvatarURL != 0 {
		avatar, err := readString(reader)
		if err != nil {
			return nil, errors.Wrap(err, "read avatar url")
		}
		u.AvatarURL = &avatar
	}

	if u.CreatedAt, err = readTime(reader); err != nil {
		return nil, errors.Wrap(err, "read created at")
	}
	if u.UpdatedAt, err = readTime(reader); err != nil {
		return nil, errors.Wrap(err, "read updated at")
	}

	if reader.Len() != 0 {
		return nil, errors.New("trailing bytes in snapshot")
	}
	if u.ID == uuid.Nil {
		return nil, errors.New("snapshot without user id")
	}

	return u, nil
}

func writeString(buf *bytes.Buffer, s string) error {
	if len(s) > math.MaxUint16 {
		return errors.Errorf("field too long: %d bytes", len(s))
	}
	if err := binary.Write(buf, binary.BigEndian, uint16(len(s))); err != nil {
		return errors.WithStack(err)
	}
	buf.WriteString(s)

	return nil
}

func readString(reader *bytes.Reader) (string, error) {
	var size uint16
	if err := binary.Read(reader, binary.BigEndian, &size); err != nil {
		return "", errors.WithStack(err)
	}

	out := make([]byte, size)
	if _, err := io.ReadFull(reader, out); err != nil {
		return "", errors.WithStack(err)
	}

	return string(out), nil
}

// writeTime stores seconds and nanoseconds separately; UnixNano overflows outside 1678..2262, including the zero time.
func writeTime(buf *bytes.Buffer, t time.Time) error {
	if err := binary.Write(buf, binary.BigEndian, t.Unix()); err != nil {
		return errors.WithStack(err)
	}
	if err := binary.Write(buf, binary.BigEndian, int32(t.Nanosecond())); err != nil {
		return errors.WithStack(err)
	}

	return nil
}

func readTime(reader *bytes.Reader) (time.Time, error) {
	var sec int64
	var nsec int32
	if err := binary.Read(reader, binary.BigEndian, &sec); err != nil {
		return time.Time{}, errors.WithStack(err)
	}
	if err := binary.Read(reader, binary.BigEndian, &nsec); err != nil {
		return time.Time{}, errors.WithStack(err)
	}
	if nsec < 0 || nsec >= int32(time.Second) {
		return time.Time{}, errors.Errorf("nanoseconds out of range: %d", nsec)
	}

	return time.Unix(sec, int64(nsec)).UTC(), nil
}

type snapshotCodec struct{}

// NewSnapshotCodec exposes EncodeUser and DecodeUser as a service.SnapshotCodec.
func NewSnapshotCodec() service.SnapshotCodec {
	return snapshotCodec{}
}

func (snapshotCodec) EncodeUser(user *entity.User) ([]byte, error) {
	return EncodeUser(user)
}

func (snapshotCodec) DecodeUser(data []byte) (*entity.User, error) {
	return DecodeUser(data)
}
