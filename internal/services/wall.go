package services

import (
	"crypto/md5"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"net/url"

	"github.com/mischiefmanager/qualifyfirst-backend/internal/logger"
)

const cpxWallBaseURL = "https://wall.cpx-research.com/index.php"

// WallParams carries the optional personalization fields for the offer wall.
type WallParams struct {
	UserID    string
	Email     string
	SubID1    string
	SubID2    string
	MessageID string
}

// WallService signs CPX Research URLs and postbacks. Both schemes are fixed
// by the provider: hex MD5 over a dash-joined pair with the shared secret.
type WallService interface {
	GenerateWallURL(params WallParams) string
	VerifyPostbackHash(transactionID, hash string) bool
}

type wallService struct {
	log       *logger.Logger
	appID     string
	secureKey string
}

func NewWallService(log *logger.Logger, appID, secureKey string) WallService {
	return &wallService{
		log:       log.With("service", "WallService"),
		appID:     appID,
		secureKey: secureKey,
	}
}

func (s *wallService) GenerateWallURL(params WallParams) string {
	values := url.Values{}
	values.Set("app_id", s.appID)
	values.Set("ext_user_id", params.UserID)
	values.Set("secure_hash", md5Hex(params.UserID+"-"+s.secureKey))
	if params.Email != "" {
		values.Set("email", params.Email)
	}
	if params.SubID1 != "" {
		values.Set("subid_1", params.SubID1)
	}
	if params.SubID2 != "" {
		values.Set("subid_2", params.SubID2)
	}
	if params.MessageID != "" {
		values.Set("message_id", params.MessageID)
	}
	return cpxWallBaseURL + "?" + values.Encode()
}

// VerifyPostbackHash checks the postback signature. Comparison is
// case-insensitive on the hex digits and constant-time.
func (s *wallService) VerifyPostbackHash(transactionID, hash string) bool {
	if transactionID == "" || hash == "" {
		return false
	}
	decoded, err := hex.DecodeString(hash)
	if err != nil {
		return false
	}
	sum := md5.Sum([]byte(transactionID + "-" + s.secureKey))
	return subtle.ConstantTimeCompare(decoded, sum[:]) == 1
}

func md5Hex(input string) string {
	sum := md5.Sum([]byte(input))
	return fmt.Sprintf("%x", sum)
}
