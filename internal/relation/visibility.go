package relation

// CanView reports whether viewer may see content owned by target, given the
// target's privacy flag and the pair state seen from the viewer. A pending
// request grants nothing
func CanView(viewer, target string, targetPrivacy Privacy, state PairState) bool {
	if viewer != "" && viewer == target {
		return true
	}
	if targetPrivacy == PrivacyPublic {
		return true
	}
	return state.Outgoing == StatusFollowing
}
