package user

// Capabilities are the permission flags the portal views branch on. The zero
// value is the anonymous viewer with every flag except IsAnonymous false.
type Capabilities struct {
	IsAnonymous         bool `json:"is_anonymous"`
	IsAnonymousPlus     bool `json:"is_anonymous_plus"`
	IsAdmin             bool `json:"is_admin"`
	IsOwner             bool `json:"is_owner"`
	IsExplorer          bool `json:"is_explorer"`
	RegisteredToCompany bool `json:"registered_to_company"`
}

// Anonymous returns the capabilities of a viewer without a session.
func Anonymous() Capabilities {
	return Capabilities{IsAnonymous: true}
}

// Capabilities derives the viewer's flags. A nil profile is anonymous. An
// authenticated but unverified user is "anonymous plus" and gets no role or
// company flags until the email address is verified.
func (p *Profile) Capabilities() Capabilities {
	if p == nil || p.Subject == "" {
		return Anonymous()
	}
	if !p.EmailVerified {
		return Capabilities{IsAnonymousPlus: true}
	}
	return Capabilities{
		IsAdmin:             p.HasRole(RoleAdmin),
		IsOwner:             p.HasRole(RoleOwner),
		IsExplorer:          p.HasRole(RoleExplorer),
		RegisteredToCompany: p.CompanyCode != "",
	}
}

// CanUseUserTool reports whether the viewer may look up a user's sessions.
func (c Capabilities) CanUseUserTool() bool {
	return c.IsAdmin || c.RegisteredToCompany
}
