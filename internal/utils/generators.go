package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
)

func NewID() string {
	return uuid.NewString()
}

// GenerateTicketNumber returns a human-facing number: TKT, two-digit year and
// month, then four random digits.
func GenerateTicketNumber(now time.Time) string {
	randomNum, err := rand.Int(rand.Reader, big.NewInt(10000))
	if err != nil {
		return fmt.Sprintf("TKT%s%04d", now.Format("0601"), now.UnixNano()%10000)
	}
	return fmt.Sprintf("TKT%s%04d", now.Format("0601"), randomNum.Int64())
}
