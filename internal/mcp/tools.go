package mcp

import "github.com/mark3labs/mcp-go/mcp"

// Pagination arguments shared by list tools.
var (
	pageArg    = mcp.WithNumber("page", mcp.Description("1-based page number (default 1)"))
	perPageArg = mcp.WithNumber("per_page", mcp.Description("Records per page (default and maximum from config)"))
)

var contributorCreateToolDef = mcp.NewTool("contributor_create",
	mcp.WithDescription("Create a contributor. Emails are unique among live contributors (case-insensitive)."),
	mcp.WithString("name", mcp.Required(), mcp.Description("Display name")),
	mcp.WithString("email", mcp.Required(), mcp.Description("Email address")),
)

var contributorGetToolDef = mcp.NewTool("contributor_get",
	mcp.WithDescription("Get a contributor together with the capsules it owns."),
	mcp.WithNumber("id", mcp.Required(), mcp.Description("Contributor id")),
)

var contributorListToolDef = mcp.NewTool("contributor_list",
	mcp.WithDescription("List contributors in creation order."),
	pageArg,
	perPageArg,
)

var contributorUpdateToolDef = mcp.NewTool("contributor_update",
	mcp.WithDescription("Change a contributor's name and/or email. Omitted or blank fields are left unchanged."),
	mcp.WithNumber("id", mcp.Required(), mcp.Description("Contributor id")),
	mcp.WithString("name", mcp.Description("New display name")),
	mcp.WithString("email", mcp.Description("New email address")),
)

var contributorDeleteToolDef = mcp.NewTool("contributor_delete",
	mcp.WithDescription("Delete a contributor, every capsule it owns, and every item in those capsules."),
	mcp.WithNumber("id", mcp.Required(), mcp.Description("Contributor id")),
)

var capsuleCreateToolDef = mcp.NewTool("capsule_create",
	mcp.WithDescription("Create a capsule for an existing contributor. Repeating an identical request is rejected as DUPLICATE_SUBMISSION."),
	mcp.WithString("name", mcp.Required(), mcp.Description("Capsule name")),
	mcp.WithString("description", mcp.Description("Markdown description")),
	mcp.WithNumber("contributor_id", mcp.Required(), mcp.Description("Owning contributor id")),
	mcp.WithString("time_open", mcp.Required(), mcp.Description("When the capsule opens (RFC 3339)")),
)

var capsuleGetToolDef = mcp.NewTool("capsule_get",
	mcp.WithDescription("Get a capsule by id."),
	mcp.WithNumber("id", mcp.Required(), mcp.Description("Capsule id")),
)

var capsuleListToolDef = mcp.NewTool("capsule_list",
	mcp.WithDescription("List capsules in creation order."),
	pageArg,
	perPageArg,
)

var capsulePatchToolDef = mcp.NewTool("capsule_patch",
	mcp.WithDescription("Conditionally update a capsule's name and/or description. Pass the version you read as version or etag; a stale version is rejected with STALE_VERSION."),
	mcp.WithNumber("id", mcp.Required(), mcp.Description("Capsule id")),
	mcp.WithNumber("version", mcp.Description("Expected current version")),
	mcp.WithNumber("etag", mcp.Description("Expected current version; must equal version when both are given")),
	mcp.WithString("name", mcp.Description("New name")),
	mcp.WithString("description", mcp.Description("New markdown description")),
)

var capsuleDeleteToolDef = mcp.NewTool("capsule_delete",
	mcp.WithDescription("Delete a capsule and every item in it."),
	mcp.WithNumber("id", mcp.Required(), mcp.Description("Capsule id")),
)

var capsuleMergeToolDef = mcp.NewTool("capsule_merge",
	mcp.WithDescription("Fold capsule_id_2 into capsule_id_1. Both must belong to the same contributor and be inside their modification windows."),
	mcp.WithNumber("capsule_id_1", mcp.Required(), mcp.Description("Surviving capsule id")),
	mcp.WithNumber("capsule_id_2", mcp.Required(), mcp.Description("Capsule to fold in and remove")),
)

var itemAddToolDef = mcp.NewTool("item_add",
	mcp.WithDescription("Add an item to an open capsule. Repeating an identical item is rejected as DUPLICATE_SUBMISSION."),
	mcp.WithNumber("capsule_id", mcp.Required(), mcp.Description("Capsule id")),
	mcp.WithString("type", mcp.Required(), mcp.Description("Item type, e.g. photo, video, letter")),
	mcp.WithString("description", mcp.Description("Item description")),
	mcp.WithString("size", mcp.Description("Human-readable size")),
	mcp.WithString("path", mcp.Description("Location of the item's content")),
	mcp.WithObject("metadata", mcp.Description("Arbitrary JSON metadata")),
)

var itemGetToolDef = mcp.NewTool("item_get",
	mcp.WithDescription("Get an item by id. With capsule_id, the item must belong to that capsule."),
	mcp.WithNumber("item_id", mcp.Required(), mcp.Description("Item id")),
	mcp.WithNumber("capsule_id", mcp.Description("Owning capsule id")),
)

var itemListToolDef = mcp.NewTool("item_list",
	mcp.WithDescription("List a capsule's items in order, or every item page by page when capsule_id is omitted."),
	mcp.WithNumber("capsule_id", mcp.Description("Capsule id")),
	pageArg,
	perPageArg,
)

var itemPatchToolDef = mcp.NewTool("item_patch",
	mcp.WithDescription("Conditionally update an item. Pass the version you read as version or etag; a stale version is rejected with STALE_VERSION."),
	mcp.WithNumber("capsule_id", mcp.Required(), mcp.Description("Owning capsule id")),
	mcp.WithNumber("item_id", mcp.Required(), mcp.Description("Item id")),
	mcp.WithNumber("version", mcp.Description("Expected current version")),
	mcp.WithNumber("etag", mcp.Description("Expected current version; must equal version when both are given")),
	mcp.WithString("type", mcp.Description("New type")),
	mcp.WithString("description", mcp.Description("New description")),
	mcp.WithString("size", mcp.Description("New size")),
	mcp.WithString("path", mcp.Description("New path")),
	mcp.WithObject("metadata", mcp.Description("Replacement metadata")),
)

var itemDeleteToolDef = mcp.NewTool("item_delete",
	mcp.WithDescription("Delete an item from an open capsule."),
	mcp.WithNumber("capsule_id", mcp.Required(), mcp.Description("Owning capsule id")),
	mcp.WithNumber("item_id", mcp.Required(), mcp.Description("Item id")),
)

var mergeListToolDef = mcp.NewTool("merge_list",
	mcp.WithDescription("List every merge record in the order merges happened."),
)
