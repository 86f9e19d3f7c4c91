package rbac

import "context"

// Guards answers common questions for one caller. Every method goes through
// the Checker, so answers are cached and audited like any other decision.
type Guards struct {
	checker *Checker
	roles   *RoleSet
}

// NewGuards binds a checker to a role set. roles may be nil, in which case
// every guard returns false.
func NewGuards(checker *Checker, roles *RoleSet) *Guards {
	return &Guards{checker: checker, roles: roles}
}

func (g *Guards) can(ctx context.Context, req Request) bool {
	return g.checker.Can(ctx, g.roles, req)
}

func (g *Guards) CanCreateReviewGroup(ctx context.Context) bool {
	return g.can(ctx, ReviewGroup(ReviewGroupCreate, ReviewGroupAttrs{}))
}

func (g *Guards) CanManageReviewGroup(ctx context.Context, reviewGroupID string) bool {
	return g.can(ctx, ReviewGroup(ReviewGroupUpdate, ReviewGroupAttrs{ReviewGroupID: reviewGroupID}))
}

func (g *Guards) CanCreateNamespace(ctx context.Context, reviewGroupID string) bool {
	return g.can(ctx, Namespace(NamespaceCreate, NamespaceAttrs{ReviewGroupID: reviewGroupID}))
}

func (g *Guards) CanEditNamespace(ctx context.Context, namespaceID, reviewGroupID string) bool {
	return g.can(ctx, Namespace(NamespaceUpdate, NamespaceAttrs{NamespaceID: namespaceID, ReviewGroupID: reviewGroupID}))
}

func (g *Guards) CanCreateProject(ctx context.Context, reviewGroupID string) bool {
	return g.can(ctx, Project(ProjectCreate, ProjectAttrs{ReviewGroupID: reviewGroupID}))
}

func (g *Guards) CanManageProject(ctx context.Context, projectID, reviewGroupID string) bool {
	return g.can(ctx, Project(ProjectUpdate, ProjectAttrs{ProjectID: projectID, ReviewGroupID: reviewGroupID}))
}

func (g *Guards) CanManageTeam(ctx context.Context, teamID, reviewGroupID string) bool {
	return g.can(ctx, Team(TeamUpdate, TeamAttrs{TeamID: teamID, ReviewGroupID: reviewGroupID}))
}

func (g *Guards) CanAddTeamMember(ctx context.Context, teamID, reviewGroupID string) bool {
	return g.can(ctx, Team(TeamAddMember, TeamAttrs{TeamID: teamID, ReviewGroupID: reviewGroupID}))
}

func (g *Guards) CanEditElementSet(ctx context.Context, elementSetID, namespaceID string) bool {
	return g.can(ctx, ElementSet(ElementSetUpdate, ContentAttrs{ElementSetID: elementSetID, NamespaceID: namespaceID}))
}

func (g *Guards) CanEditVocabulary(ctx context.Context, vocabularyID, namespaceID string) bool {
	return g.can(ctx, Vocabulary(VocabularyUpdate, ContentAttrs{VocabularyID: vocabularyID, NamespaceID: namespaceID}))
}

func (g *Guards) CanTranslate(ctx context.Context, language, namespaceID string) bool {
	return g.can(ctx, Translation(TranslationUpdate, TranslationAttrs{Language: language, NamespaceID: namespaceID}))
}

// CanApproveTranslation needs the review group: approval belongs to its admins
func (g *Guards) CanApproveTranslation(ctx context.Context, translationID, namespaceID, reviewGroupID string) bool {
	return g.can(ctx, Translation(TranslationApprove, TranslationAttrs{
		TranslationID: translationID, NamespaceID: namespaceID, ReviewGroupID: reviewGroupID,
	}))
}

func (g *Guards) CanCreateRelease(ctx context.Context, namespaceID, reviewGroupID string) bool {
	return g.can(ctx, Release(ReleaseCreate, ReleaseAttrs{NamespaceID: namespaceID, ReviewGroupID: reviewGroupID}))
}

func (g *Guards) CanPublishRelease(ctx context.Context, releaseID, namespaceID, reviewGroupID string) bool {
	return g.can(ctx, Release(ReleasePublish, ReleaseAttrs{
		ReleaseID: releaseID, NamespaceID: namespaceID, ReviewGroupID: reviewGroupID,
	}))
}

func (g *Guards) CanEditSpreadsheet(ctx context.Context, spreadsheetID, namespaceID string) bool {
	return g.can(ctx, Spreadsheet(SpreadsheetEdit, SpreadsheetAttrs{SpreadsheetID: spreadsheetID, NamespaceID: namespaceID}))
}

func (g *Guards) CanImportSpreadsheet(ctx context.Context, namespaceID string) bool {
	return g.can(ctx, Spreadsheet(SpreadsheetImport, SpreadsheetAttrs{NamespaceID: namespaceID}))
}

func (g *Guards) CanEditDocumentation(ctx context.Context, docID, namespaceID string) bool {
	return g.can(ctx, Documentation(DocumentationUpdate, DocumentationAttrs{DocID: docID, NamespaceID: namespaceID}))
}

func (g *Guards) CanInviteUser(ctx context.Context, reviewGroupID string) bool {
	return g.can(ctx, User(UserInvite, UserAttrs{ReviewGroupID: reviewGroupID}))
}

func (g *Guards) CanManageUser(ctx context.Context, userID string) bool {
	return g.can(ctx, User(UserUpdate, UserAttrs{UserID: userID}))
}
