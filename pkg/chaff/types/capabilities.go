package types

// Capability is the set of behaviors a file type supports in the reference
// graph.
type Capability struct {
	LinkAttachment bool
	LinkEmbed      bool
	SecretCarrier  bool
}

var capabilities = map[FileType]Capability{
	Email:       {LinkAttachment: true, SecretCarrier: true},
	Document:    {LinkEmbed: true, SecretCarrier: true},
	Spreadsheet: {LinkEmbed: true},
	Text:        {SecretCarrier: true},
	Image:       {},
	Structured:  {},
}

// linkTargets lists, per role and source type, the types it may point at.
var linkTargets = map[Role]map[FileType][]FileType{
	Attachment: {
		Email: {Document, Spreadsheet, Image, Text, Structured},
	},
	EmbeddedAsset: {
		Document:    {Image},
		Spreadsheet: {Image},
	},
}

// CapabilitiesOf returns the capability set for a type.
func CapabilitiesOf(t FileType) Capability {
	return capabilities[t]
}

// Links reports whether a type has outgoing edges of the given role.
func (t FileType) Links(role Role) bool {
	c := capabilities[t]
	switch role {
	case Attachment:
		return c.LinkAttachment
	case EmbeddedAsset:
		return c.LinkEmbed
	default:
		return false
	}
}

// CanTarget reports whether a node of type from may hold an edge of the given
// role to a node of type to.
func CanTarget(from FileType, role Role, to FileType) bool {
	if !from.Links(role) {
		return false
	}
	for _, t := range linkTargets[role][from] {
		if t == to {
			return true
		}
	}
	return false
}

// LinkRoles lists the roles assigned by the first graph pass.
var LinkRoles = []Role{Attachment, EmbeddedAsset}
