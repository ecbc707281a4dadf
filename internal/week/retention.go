package week

// Horizon is the number of weeks whose posts stay visible and undeleted:
// the current week and the one before it.
const Horizon = 2

// WithinHorizon reports whether candidate is current or the week immediately
// preceding it. Feed gating and cleanup both use this check so a week is
// never shown after it is purged nor purged while still shown.
func WithinHorizon(candidate, current ID) bool {
	if !candidate.Valid() || !current.Valid() {
		return false
	}
	return candidate == current || candidate == current.Prev()
}

// Visible returns the weeks inside the horizon, most recent first.
func Visible(current ID) []ID {
	out := make([]ID, 0, Horizon)
	w := current
	for i := 0; i < Horizon; i++ {
		out = append(out, w)
		w = w.Prev()
	}
	return out
}
