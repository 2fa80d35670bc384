package room

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

var (
	TitleRule         = []validation.Rule{validation.NilOrNotEmpty, validation.RuneLength(1, 100)}
	DescriptionRule   = []validation.Rule{validation.RuneLength(0, 500)}
	PasswordRule      = []validation.Rule{validation.Required, validation.RuneLength(1, 32)}
	SyncToleranceRule = []validation.Rule{validation.Min(0.0), validation.Max(30.0)}
	MessageRule       = []validation.Rule{validation.Required, validation.RuneLength(1, 500)}
	EmojiRule         = []validation.Rule{validation.Required, validation.RuneLength(1, 32)}
	PositionRule      = []validation.Rule{validation.Min(0.0)}
)

func (s *service) maxUsersRule() []validation.Rule {
	return []validation.Rule{validation.NilOrNotEmpty, validation.Min(1), validation.Max(s.membersMax)}
}

// SettingsPatch carries the settings fields to change. Nil fields are
// left as they are.
type SettingsPatch struct {
	ChatEnabled    *bool
	NonHostControl *bool
	SyncTolerance  *float64
	SystemMessages *bool
}

func (p SettingsPatch) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.SyncTolerance, SyncToleranceRule...),
	)
}

func (p *SettingsPatch) apply(settings Settings) Settings {
	if p == nil {
		return settings
	}

	if p.ChatEnabled != nil {
		settings.ChatEnabled = *p.ChatEnabled
	}
	if p.NonHostControl != nil {
		settings.NonHostControl = *p.NonHostControl
	}
	if p.SyncTolerance != nil {
		settings.SyncTolerance = *p.SyncTolerance
	}
	if p.SystemMessages != nil {
		settings.SystemMessages = *p.SystemMessages
	}

	return settings
}
