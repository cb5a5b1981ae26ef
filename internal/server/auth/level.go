// Package auth implements session identity: capability levels, session
// records, signed tokens and the idle-session reaper.
package auth

import "encoding/json"

// Level is an ordered capability rank. Comparisons must use the declared
// order, never any display value.
type Level int

const (
	LevelPublic Level = iota
	LevelRead
	LevelReadWrite
	LevelOwner
	LevelAdmin
)

var levelNames = map[Level]string{
	LevelPublic:    "Public",
	LevelRead:      "Read",
	LevelReadWrite: "ReadWrite",
	LevelOwner:     "Owner",
	LevelAdmin:     "Admin",
}

func (l Level) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return "Public"
}

// LevelFromString maps a level name back to its rank. Unknown strings map
// to Public.
func LevelFromString(s string) Level {
	switch s {
	case "Public":
		return LevelPublic
	case "Read":
		return LevelRead
	case "ReadWrite":
		return LevelReadWrite
	case "Owner":
		return LevelOwner
	case "Admin":
		return LevelAdmin
	}
	return LevelPublic
}

// Levels serialize as their fixed names, not as numbers.
func (l Level) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.String())
}

func (l *Level) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	*l = LevelFromString(s)
	return nil
}
