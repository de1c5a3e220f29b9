package transcribe

// Transfer is how audio reaches the model.
type Transfer int

const (
	TransferInline Transfer = iota
	TransferUpload
)

func (t Transfer) String() string {
	if t == TransferUpload {
		return "upload"
	}
	return "inline"
}

// Force overrides the size-based transfer choice.
type Force int

const (
	ForceNone Force = iota
	ForceInline
	ForceUpload
)

// ParseForce maps the CLI's --inline/--upload flags; upload wins when both are
// set.
func ParseForce(inline, upload bool) Force {
	switch {
	case upload:
		return ForceUpload
	case inline:
		return ForceInline
	default:
		return ForceNone
	}
}

// ChooseTransfer embeds audio at or under threshold bytes and uploads larger
// files, unless forced.
func ChooseTransfer(size, threshold int64, force Force) Transfer {
	switch force {
	case ForceUpload:
		return TransferUpload
	case ForceInline:
		return TransferInline
	}
	if size <= threshold {
		return TransferInline
	}
	return TransferUpload
}

// MB is the unit of the inline thresholds.
const MB = 1 << 20
