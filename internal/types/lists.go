package types

import (
	"encoding/json"

	"gorm.io/datatypes"
)

func decodeStringList(raw datatypes.JSON) []string {
	if len(raw) == 0 {
		return nil
	}
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}

func StringList(values []string) datatypes.JSON {
	raw, err := json.Marshal(values)
	if err != nil {
		return nil
	}
	return datatypes.JSON(raw)
}

func (p *Profile) InterestList() []string { return decodeStringList(p.Interests) }

func (s *Survey) GenderList() []string   { return decodeStringList(s.Genders) }
func (s *Survey) CountryList() []string  { return decodeStringList(s.Countries) }
func (s *Survey) DeviceList() []string   { return decodeStringList(s.Devices) }
func (s *Survey) InterestList() []string { return decodeStringList(s.Interests) }

// AgeBracketMidpoint maps the questionnaire bracket to a representative age.
// Unknown brackets fall back to 25, same as the profile questionnaire does.
func AgeBracketMidpoint(bracket string) int {
	switch bracket {
	case "18-24":
		return 21
	case "25-34":
		return 30
	case "35-44":
		return 40
	case "45-54":
		return 50
	case "55-64":
		return 60
	case "65+":
		return 70
	default:
		return 25
	}
}
