package rbac

import "fmt"

// ResourceType is a kind of thing that can be protected
type ResourceType string

const (
	ResourceReviewGroup   ResourceType = "reviewGroup"
	ResourceNamespace     ResourceType = "namespace"
	ResourceProject       ResourceType = "project"
	ResourceTeam          ResourceType = "team"
	ResourceElementSet    ResourceType = "elementSet"
	ResourceVocabulary    ResourceType = "vocabulary"
	ResourceTranslation   ResourceType = "translation"
	ResourceRelease       ResourceType = "release"
	ResourceSpreadsheet   ResourceType = "spreadsheet"
	ResourceDocumentation ResourceType = "documentation"
	ResourceDctap         ResourceType = "dctap"
	ResourceUser          ResourceType = "user"
)

// Action is the wire form of any resource action. Typed code should use the
// per-resource enums below.
type Action string

const (
	ActionCreate           Action = "create"
	ActionRead             Action = "read"
	ActionUpdate           Action = "update"
	ActionDelete           Action = "delete"
	ActionList             Action = "list"
	ActionManage           Action = "manage"
	ActionAssignTeam       Action = "assignTeam"
	ActionAssignNamespace  Action = "assignNamespace"
	ActionListMembers      Action = "listMembers"
	ActionAddMember        Action = "addMember"
	ActionRemoveMember     Action = "removeMember"
	ActionUpdateMemberRole Action = "updateMemberRole"
	ActionApprove          Action = "approve"
	ActionAssignTranslator Action = "assignTranslator"
	ActionPublish          Action = "publish"
	ActionEdit             Action = "edit"
	ActionImport           Action = "import"
	ActionExport           Action = "export"
	ActionInvite           Action = "invite"
	ActionImpersonate      Action = "impersonate"
)

type ReviewGroupAction Action

const (
	ReviewGroupCreate ReviewGroupAction = ReviewGroupAction(ActionCreate)
	ReviewGroupRead   ReviewGroupAction = ReviewGroupAction(ActionRead)
	ReviewGroupUpdate ReviewGroupAction = ReviewGroupAction(ActionUpdate)
	ReviewGroupDelete ReviewGroupAction = ReviewGroupAction(ActionDelete)
	ReviewGroupList   ReviewGroupAction = ReviewGroupAction(ActionList)
	ReviewGroupManage ReviewGroupAction = ReviewGroupAction(ActionManage)
)

type NamespaceAction Action

const (
	NamespaceCreate NamespaceAction = NamespaceAction(ActionCreate)
	NamespaceRead   NamespaceAction = NamespaceAction(ActionRead)
	NamespaceUpdate NamespaceAction = NamespaceAction(ActionUpdate)
	NamespaceDelete NamespaceAction = NamespaceAction(ActionDelete)
	NamespaceList   NamespaceAction = NamespaceAction(ActionList)
)

type ProjectAction Action

const (
	ProjectCreate          ProjectAction = ProjectAction(ActionCreate)
	ProjectRead            ProjectAction = ProjectAction(ActionRead)
	ProjectUpdate          ProjectAction = ProjectAction(ActionUpdate)
	ProjectDelete          ProjectAction = ProjectAction(ActionDelete)
	ProjectAssignTeam      ProjectAction = ProjectAction(ActionAssignTeam)
	ProjectAssignNamespace ProjectAction = ProjectAction(ActionAssignNamespace)
)

type TeamAction Action

const (
	TeamCreate           TeamAction = TeamAction(ActionCreate)
	TeamRead             TeamAction = TeamAction(ActionRead)
	TeamUpdate           TeamAction = TeamAction(ActionUpdate)
	TeamDelete           TeamAction = TeamAction(ActionDelete)
	TeamListMembers      TeamAction = TeamAction(ActionListMembers)
	TeamAddMember        TeamAction = TeamAction(ActionAddMember)
	TeamRemoveMember     TeamAction = TeamAction(ActionRemoveMember)
	TeamUpdateMemberRole TeamAction = TeamAction(ActionUpdateMemberRole)
)

type ElementSetAction Action

const (
	ElementSetCreate ElementSetAction = ElementSetAction(ActionCreate)
	ElementSetRead   ElementSetAction = ElementSetAction(ActionRead)
	ElementSetUpdate ElementSetAction = ElementSetAction(ActionUpdate)
	ElementSetDelete ElementSetAction = ElementSetAction(ActionDelete)
)

type VocabularyAction Action

const (
	VocabularyCreate VocabularyAction = VocabularyAction(ActionCreate)
	VocabularyRead   VocabularyAction = VocabularyAction(ActionRead)
	VocabularyUpdate VocabularyAction = VocabularyAction(ActionUpdate)
	VocabularyDelete VocabularyAction = VocabularyAction(ActionDelete)
)

type TranslationAction Action

const (
	TranslationRead             TranslationAction = TranslationAction(ActionRead)
	TranslationUpdate           TranslationAction = TranslationAction(ActionUpdate)
	TranslationApprove          TranslationAction = TranslationAction(ActionApprove)
	TranslationAssignTranslator TranslationAction = TranslationAction(ActionAssignTranslator)
)

type ReleaseAction Action

const (
	ReleaseCreate  ReleaseAction = ReleaseAction(ActionCreate)
	ReleaseRead    ReleaseAction = ReleaseAction(ActionRead)
	ReleaseUpdate  ReleaseAction = ReleaseAction(ActionUpdate)
	ReleaseDelete  ReleaseAction = ReleaseAction(ActionDelete)
	ReleasePublish ReleaseAction = ReleaseAction(ActionPublish)
)

type SpreadsheetAction Action

const (
	SpreadsheetRead   SpreadsheetAction = SpreadsheetAction(ActionRead)
	SpreadsheetEdit   SpreadsheetAction = SpreadsheetAction(ActionEdit)
	SpreadsheetImport SpreadsheetAction = SpreadsheetAction(ActionImport)
	SpreadsheetExport SpreadsheetAction = SpreadsheetAction(ActionExport)
	SpreadsheetUpdate SpreadsheetAction = SpreadsheetAction(ActionUpdate)
)

type DocumentationAction Action

const (
	DocumentationCreate DocumentationAction = DocumentationAction(ActionCreate)
	DocumentationRead   DocumentationAction = DocumentationAction(ActionRead)
	DocumentationUpdate DocumentationAction = DocumentationAction(ActionUpdate)
	DocumentationDelete DocumentationAction = DocumentationAction(ActionDelete)
)

type DctapAction Action

const (
	DctapCreate DctapAction = DctapAction(ActionCreate)
	DctapRead   DctapAction = DctapAction(ActionRead)
	DctapUpdate DctapAction = DctapAction(ActionUpdate)
	DctapDelete DctapAction = DctapAction(ActionDelete)
	DctapExport DctapAction = DctapAction(ActionExport)
)

type UserAction Action

const (
	UserInvite      UserAction = UserAction(ActionInvite)
	UserRead        UserAction = UserAction(ActionRead)
	UserUpdate      UserAction = UserAction(ActionUpdate)
	UserDelete      UserAction = UserAction(ActionDelete)
	UserImpersonate UserAction = UserAction(ActionImpersonate)
)

// actionSets is the closed action set of every resource type
var actionSets = map[ResourceType][]Action{
	ResourceReviewGroup:   {ActionCreate, ActionRead, ActionUpdate, ActionDelete, ActionList, ActionManage},
	ResourceNamespace:     {ActionCreate, ActionRead, ActionUpdate, ActionDelete, ActionList},
	ResourceProject:       {ActionCreate, ActionRead, ActionUpdate, ActionDelete, ActionAssignTeam, ActionAssignNamespace},
	ResourceTeam:          {ActionCreate, ActionRead, ActionUpdate, ActionDelete, ActionListMembers, ActionAddMember, ActionRemoveMember, ActionUpdateMemberRole},
	ResourceElementSet:    {ActionCreate, ActionRead, ActionUpdate, ActionDelete},
	ResourceVocabulary:    {ActionCreate, ActionRead, ActionUpdate, ActionDelete},
	ResourceTranslation:   {ActionRead, ActionUpdate, ActionApprove, ActionAssignTranslator},
	ResourceRelease:       {ActionCreate, ActionRead, ActionUpdate, ActionDelete, ActionPublish},
	ResourceSpreadsheet:   {ActionRead, ActionEdit, ActionImport, ActionExport, ActionUpdate},
	ResourceDocumentation: {ActionCreate, ActionRead, ActionUpdate, ActionDelete},
	ResourceDctap:         {ActionCreate, ActionRead, ActionUpdate, ActionDelete, ActionExport},
	ResourceUser:          {ActionInvite, ActionRead, ActionUpdate, ActionDelete, ActionImpersonate},
}

// ResourceTypes lists every resource type in a stable order
func ResourceTypes() []ResourceType {
	return []ResourceType{
		ResourceReviewGroup, ResourceNamespace, ResourceProject, ResourceTeam,
		ResourceElementSet, ResourceVocabulary, ResourceTranslation, ResourceRelease,
		ResourceSpreadsheet, ResourceDocumentation, ResourceDctap, ResourceUser,
	}
}

// Actions returns the closed action set of t, or nil for an unknown type
func (t ResourceType) Actions() []Action {
	set, ok := actionSets[t]
	if !ok {
		return nil
	}
	return append([]Action(nil), set...)
}

// Valid reports whether t is a known resource type
func (t ResourceType) Valid() bool {
	_, ok := actionSets[t]
	return ok
}

// Allows reports whether a belongs to t's action set
func (t ResourceType) Allows(a Action) bool {
	for _, candidate := range actionSets[t] {
		if candidate == a {
			return true
		}
	}
	return false
}

// Request is one (resource type, action, attributes) tuple to decide on.
// Only the typed constructors and ParseRequest can build one, so the action
// always belongs to the resource type.
type Request struct {
	resource ResourceType
	action   Action
	attrs    Attributes
}

// Resource returns the resource type
func (r Request) Resource() ResourceType { return r.resource }

// Action returns the action
func (r Request) Action() Action { return r.action }

// Attributes returns the attribute variant, never nil for a constructed request
func (r Request) Attributes() Attributes {
	if r.attrs == nil {
		return emptyAttributes(r.resource)
	}
	return r.attrs
}

// String returns "resource:action"
func (r Request) String() string {
	return string(r.resource) + ":" + string(r.action)
}

func ReviewGroup(a ReviewGroupAction, attrs ReviewGroupAttrs) Request {
	return Request{resource: ResourceReviewGroup, action: Action(a), attrs: attrs}
}

func Namespace(a NamespaceAction, attrs NamespaceAttrs) Request {
	return Request{resource: ResourceNamespace, action: Action(a), attrs: attrs}
}

func Project(a ProjectAction, attrs ProjectAttrs) Request {
	return Request{resource: ResourceProject, action: Action(a), attrs: attrs}
}

func Team(a TeamAction, attrs TeamAttrs) Request {
	return Request{resource: ResourceTeam, action: Action(a), attrs: attrs}
}

func ElementSet(a ElementSetAction, attrs ContentAttrs) Request {
	return Request{resource: ResourceElementSet, action: Action(a), attrs: attrs}
}

func Vocabulary(a VocabularyAction, attrs ContentAttrs) Request {
	return Request{resource: ResourceVocabulary, action: Action(a), attrs: attrs}
}

func Translation(a TranslationAction, attrs TranslationAttrs) Request {
	return Request{resource: ResourceTranslation, action: Action(a), attrs: attrs}
}

func Release(a ReleaseAction, attrs ReleaseAttrs) Request {
	return Request{resource: ResourceRelease, action: Action(a), attrs: attrs}
}

func Spreadsheet(a SpreadsheetAction, attrs SpreadsheetAttrs) Request {
	return Request{resource: ResourceSpreadsheet, action: Action(a), attrs: attrs}
}

func Documentation(a DocumentationAction, attrs DocumentationAttrs) Request {
	return Request{resource: ResourceDocumentation, action: Action(a), attrs: attrs}
}

func Dctap(a DctapAction, attrs DctapAttrs) Request {
	return Request{resource: ResourceDctap, action: Action(a), attrs: attrs}
}

func User(a UserAction, attrs UserAttrs) Request {
	return Request{resource: ResourceUser, action: Action(a), attrs: attrs}
}

// ParseRequest builds a Request from untyped input such as a JSON body.
// Unknown resource types and actions outside the type's set are rejected;
// attributes are decoded leniently.
func ParseRequest(resource, action string, raw map[string]any) (Request, error) {
	rt := ResourceType(resource)
	if !rt.Valid() {
		return Request{}, fmt.Errorf("%w: %q", ErrUnknownResource, resource)
	}
	a := Action(action)
	if !rt.Allows(a) {
		return Request{}, fmt.Errorf("%w: %q is not an action of %s", ErrInvalidAction, action, rt)
	}
	return Request{resource: rt, action: a, attrs: DecodeAttributes(rt, raw)}, nil
}
