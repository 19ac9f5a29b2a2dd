package core

import (
	"encoding/hex"
	"fmt"
	"log"
	"os"

	"github.com/fatih/color"
)

func NewLogger(prefix string, prefix2 string) *log.Logger {
	// 2024/06/30 00:56:06 [prefix] (prefix2) message
	prefixFull := color.HiGreenString(fmt.Sprintf("[%s] ", prefix))
	if prefix2 != "" {
		prefixFull += color.HiYellowString(fmt.Sprintf("(%s) ", prefix2))
	}
	return log.New(os.Stdout, prefixFull, log.Ldate|log.Ltime|log.Lmsgprefix)
}

func Bytes32ToString(b [32]byte) string {
	return hex.EncodeToString(b[:])
}

func HexStringToBytes32(s string) ([32]byte, error) {
	var b [32]byte
	buf, err := hex.DecodeString(s)
	if err != nil {
		return b, err
	}
	if len(buf) != len(b) {
		return b, fmt.Errorf("got %d bytes, want %d", len(buf), len(b))
	}
	copy(b[:], buf)
	return b, nil
}
