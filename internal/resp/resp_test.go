package resp

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFrameLenArrayOfBulkStrings(t *testing.T) {
	buf := []byte("*2\r\n$4\r\nPING\r\n$3\r\nfoo\r\n")
	n, ok := FrameLen(buf)
	require.True(t, ok)
	require.Equal(t, len(buf), n)
}

func TestFrameLenPartial(t *testing.T) {
	buf := []byte("*2\r\n$4\r\nPING\r\n$3\r\nfo")
	_, ok := FrameLen(buf)
	require.False(t, ok)
}

func TestFrameLenServicesMultipleFramesInOneRead(t *testing.T) {
	buf := []byte("+OK\r\n:5\r\n")
	n, ok := FrameLen(buf)
	require.True(t, ok)
	require.Equal(t, 5, n)
	n2, ok := FrameLen(buf[n:])
	require.True(t, ok)
	require.Equal(t, 4, n2)
}

func TestDecodeCommand(t *testing.T) {
	buf := []byte("*2\r\n$3\r\nGET\r\n$3\r\nfoo\r\n")
	args, err := DecodeCommand(buf)
	require.NoError(t, err)
	require.Equal(t, [][]byte{[]byte("GET"), []byte("foo")}, args)
}

func TestRoundTripBulkString(t *testing.T) {
	encoded := EncodeBulkString([]byte("hello world"))
	n, ok := FrameLen(encoded)
	require.True(t, ok)
	require.Equal(t, len(encoded), n)
}

func TestEncodeCommandRoundTrips(t *testing.T) {
	args := [][]byte{[]byte("SET"), []byte("k"), []byte("v")}
	encoded := EncodeCommand(args)
	decoded, err := DecodeCommand(encoded)
	require.NoError(t, err)
	require.Equal(t, args, decoded)
}

func TestBulkHeaderLen(t *testing.T) {
	buf := []byte("$5\r\nhello")
	headerLen, payloadLen, ok := BulkHeaderLen(buf)
	require.True(t, ok)
	require.Equal(t, 4, headerLen)
	require.Equal(t, 5, payloadLen)
}
