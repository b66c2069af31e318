package rbac

// Kind discriminates the permission flag an Action checks.
type Kind uint8

// Action kinds. KindCustom actions are matched against the custom_action column.
const (
	KindInvalid Kind = iota
	KindGeneral
	KindCreate
	KindRead
	KindUpdate
	KindDelete
	KindCustom
)

// Action is a permission verb: one of the flag columns or a custom keyword.
type Action struct {
	kind   Kind
	custom string
}

// Flag actions.
var (
	General = Action{kind: KindGeneral}
	Create  = Action{kind: KindCreate}
	Read    = Action{kind: KindRead}
	Update  = Action{kind: KindUpdate}
	Delete  = Action{kind: KindDelete}
)

// Custom keywords recognised by permission rules.
const (
	ActionBlock          = "BLOCK"
	ActionUnblock        = "UNBLOCK"
	ActionReject         = "REJECT"
	ActionApprove        = "APPROVE"
	ActionResend         = "RESEND"
	ActionCancel         = "CANCEL"
	ActionSharpIncrement = "SHARP_INCREMENT"
	ActionDisable2FA     = "DISABLE_2FA"
	ActionEnable2FA      = "ENABLE_2FA"
	ActionDeletePasskey  = "DELETE_PASSKEY"
)

var customVocabulary = map[string]struct{}{
	ActionBlock:          {},
	ActionUnblock:        {},
	ActionReject:         {},
	ActionApprove:        {},
	ActionResend:         {},
	ActionCancel:         {},
	ActionSharpIncrement: {},
	ActionDisable2FA:     {},
	ActionEnable2FA:      {},
	ActionDeletePasskey:  {},
}

var flagColumns = map[Kind]string{
	KindGeneral: "general",
	KindCreate:  "create",
	KindRead:    "read",
	KindUpdate:  "update",
	KindDelete:  "delete",
}

// Custom builds a custom-keyword action. Keywords are case sensitive.
func Custom(keyword string) Action {
	return Action{kind: KindCustom, custom: keyword}
}

// ParseAction maps a raw action name onto an Action. Flag names are the
// lower-case column names; anything else is treated as a custom keyword. The
// boolean reports whether the result is in the allowed vocabulary.
func ParseAction(raw string) (Action, bool) {
	for kind, column := range flagColumns {
		if raw == column {
			return Action{kind: kind}, true
		}
	}
	a := Custom(raw)
	return a, a.Allowed()
}

// Kind returns the action discriminator.
func (a Action) Kind() Kind {
	return a.kind
}

// Allowed reports whether the action belongs to the permission vocabulary.
func (a Action) Allowed() bool {
	switch a.kind {
	case KindGeneral, KindCreate, KindRead, KindUpdate, KindDelete:
		return true
	case KindCustom:
		_, ok := customVocabulary[a.custom]
		return ok
	default:
		return false
	}
}

// Column returns the permissions flag column for flag actions.
func (a Action) Column() (string, bool) {
	column, ok := flagColumns[a.kind]
	return column, ok
}

func (a Action) String() string {
	if a.kind == KindCustom {
		return a.custom
	}
	if column, ok := flagColumns[a.kind]; ok {
		return column
	}
	return "invalid"
}
