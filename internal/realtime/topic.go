package realtime

import (
	"fmt"
	"strings"
)

type Family string

const (
	FamilyOrder Family = "order"
	FamilyStore Family = "store"
	FamilyAdmin Family = "admin"
)

// Topic is a typed room name. The zero value is not a valid topic.
type Topic struct {
	family Family
	key    string
}

func OrderTopic(orderID string) Topic { return Topic{family: FamilyOrder, key: orderID} }
func StoreTopic(slug string) Topic    { return Topic{family: FamilyStore, key: slug} }
func AdminTopic(slug string) Topic    { return Topic{family: FamilyAdmin, key: slug} }

func (t Topic) Family() Family { return t.family }
func (t Topic) Key() string    { return t.key }
func (t Topic) IsZero() bool   { return t.family == "" }

func (t Topic) String() string { return string(t.family) + ":" + t.key }

func ParseTopic(s string) (Topic, error) {
	fam, key, ok := strings.Cut(s, ":")
	if !ok || key == "" {
		return Topic{}, fmt.Errorf("invalid topic %q", s)
	}
	switch Family(fam) {
	case FamilyOrder, FamilyStore, FamilyAdmin:
		return Topic{family: Family(fam), key: key}, nil
	}
	return Topic{}, fmt.Errorf("unknown topic family %q", fam)
}

func (t Topic) MarshalText() ([]byte, error) {
	if t.IsZero() {
		return nil, fmt.Errorf("zero topic")
	}
	return []byte(t.String()), nil
}

func (t *Topic) UnmarshalText(b []byte) error {
	p, err := ParseTopic(string(b))
	if err != nil {
		return err
	}
	*t = p
	return nil
}
