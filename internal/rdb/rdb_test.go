package rdb

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeLen6(buf *bytes.Buffer, n int) {
	buf.WriteByte(byte(n))
}

func writeString(buf *bytes.Buffer, s string) {
	writeLen6(buf, len(s))
	buf.WriteString(s)
}

func TestDecodePlainStringNoExpiry(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteString("REDIS0011")
	buf.WriteByte(opSelectDB)
	writeLen6(&buf, 0)
	buf.WriteByte(opResizeDB)
	writeLen6(&buf, 1)
	writeLen6(&buf, 0)
	buf.WriteByte(typeString)
	writeString(&buf, "foo")
	writeString(&buf, "bar")
	buf.WriteByte(opEOF)

	entries, err := decode(bufio.NewReader(&buf))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "foo", entries[0].Key)
	require.Equal(t, []byte("bar"), entries[0].Value)
	require.True(t, entries[0].Expires.IsZero())
}

func TestDecodeExpiryMsRebasesToFuture(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteString("REDIS0011")
	future := time.Now().Add(time.Hour)
	buf.WriteByte(opExpireTimeMS)
	binary.Write(&buf, binary.LittleEndian, uint64(future.UnixMilli()))
	buf.WriteByte(typeString)
	writeString(&buf, "k")
	writeString(&buf, "v")
	buf.WriteByte(opEOF)

	entries, err := decode(bufio.NewReader(&buf))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.WithinDuration(t, future, entries[0].Expires, time.Second)
}

func TestDecodeIntegerStringSubtype(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteString("REDIS0011")
	buf.WriteByte(typeString)
	writeString(&buf, "n")
	buf.WriteByte(0xC0)
	buf.WriteByte(42)
	buf.WriteByte(opEOF)

	entries, err := decode(bufio.NewReader(&buf))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, []byte("42"), entries[0].Value)
}

func TestDecodeSkipsAuxFields(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteString("REDIS0011")
	buf.WriteByte(opAux)
	writeString(&buf, "redis-ver")
	writeString(&buf, "7.2.0")
	buf.WriteByte(typeString)
	writeString(&buf, "k")
	writeString(&buf, "v")
	buf.WriteByte(opEOF)

	entries, err := decode(bufio.NewReader(&buf))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "k", entries[0].Key)
}

func TestLoadMissingFileReturnsNoEntries(t *testing.T) {
	entries, err := Load("/nonexistent/path/dump.rdb")
	require.NoError(t, err)
	require.Nil(t, entries)
}
