package session

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
)

const (
	sessionFormatVersionCurrent = 1

	digestSize = 32
)

// ErrCorrupt is returned when a stored blob cannot be decoded.
var ErrCorrupt = errors.New("session: corrupt record")

// Encode serializes s as
//
//	version(1) | len(userID)(1) | userID | access(32) | refresh(32) | createdAt(8) | expiresAt(8)
//
// with big-endian integers.
func Encode(s *Session) ([]byte, error) {
	if s == nil {
		return nil, errors.New("nil session")
	}
	if s.UserID == "" {
		return nil, errors.New("empty userID")
	}
	if len(s.UserID) > 255 {
		return nil, errors.New("userID too long")
	}

	var buf bytes.Buffer
	buf.Grow(2 + len(s.UserID) + 2*digestSize + 16)

	buf.WriteByte(sessionFormatVersionCurrent)
	buf.WriteByte(byte(len(s.UserID)))
	buf.WriteString(s.UserID)
	buf.Write(s.AccessDigest[:])
	buf.Write(s.RefreshDigest[:])

	if err := binary.Write(&buf, binary.BigEndian, s.CreatedAt); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, s.ExpiresAt); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// Decode parses a blob produced by Encode.
func Decode(data []byte) (*Session, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, ErrCorrupt
	}
	if version != sessionFormatVersionCurrent {
		return nil, errors.Join(ErrCorrupt, errors.New("invalid session version"))
	}

	userLen, err := reader.ReadByte()
	if err != nil || userLen == 0 {
		return nil, ErrCorrupt
	}
	userID := make([]byte, userLen)
	if _, err := io.ReadFull(reader, userID); err != nil {
		return nil, ErrCorrupt
	}

	s := &Session{UserID: string(userID)}
	if _, err := io.ReadFull(reader, s.AccessDigest[:]); err != nil {
		return nil, ErrCorrupt
	}
	if _, err := io.ReadFull(reader, s.RefreshDigest[:]); err != nil {
		return nil, ErrCorrupt
	}
	if err := binary.Read(reader, binary.BigEndian, &s.CreatedAt); err != nil {
		return nil, ErrCorrupt
	}
	if err := binary.Read(reader, binary.BigEndian, &s.ExpiresAt); err != nil {
		return nil, ErrCorrupt
	}
	if reader.Len() != 0 {
		return nil, errors.Join(ErrCorrupt, errors.New("trailing bytes"))
	}

	return s, nil
}
