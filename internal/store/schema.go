package store

// SchemaVersion is the version recorded in meta after a full create or after all steps run.
const SchemaVersion = 5

const schema = `
CREATE TABLE IF NOT EXISTS meta (
	key TEXT PRIMARY KEY,
	value TEXT
);

CREATE TABLE IF NOT EXISTS diet_profiles (
	id INTEGER PRIMARY KEY,
	ha_user_id TEXT NOT NULL,
	display_name TEXT NOT NULL,
	color TEXT,
	created_at TEXT NOT NULL,
	UNIQUE(ha_user_id)
);

CREATE TABLE IF NOT EXISTS profile_acl (
	id INTEGER PRIMARY KEY,
	owner_profile_id INTEGER NOT NULL,
	subject_profile_id INTEGER NOT NULL,
	can_read INTEGER NOT NULL DEFAULT 1,
	can_write INTEGER NOT NULL DEFAULT 0,
	UNIQUE(owner_profile_id, subject_profile_id),
	CHECK(owner_profile_id <> subject_profile_id)
);

CREATE TABLE IF NOT EXISTS week_templates (
	id INTEGER PRIMARY KEY,
	profile_id INTEGER, -- NULL = shared
	name TEXT NOT NULL,
	description TEXT,
	is_active INTEGER NOT NULL DEFAULT 0,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS template_meals (
	id INTEGER PRIMARY KEY,
	template_id INTEGER NOT NULL,
	dow INTEGER NOT NULL CHECK(dow BETWEEN 0 AND 6),
	meal_type TEXT NOT NULL CHECK(meal_type IN ('breakfast','lunch','dinner','snack_am','snack_pm')),
	title TEXT,
	proposed_label TEXT,
	proposed_items TEXT,
	calories INTEGER,
	required INTEGER NOT NULL,
	default_source TEXT CHECK(default_source IN ('proposed','free','skipped')) DEFAULT 'proposed',
	FOREIGN KEY(template_id) REFERENCES week_templates(id)
);

CREATE TABLE IF NOT EXISTS template_meal_alternatives (
	id INTEGER PRIMARY KEY,
	template_meal_id INTEGER NOT NULL,
	title TEXT,
	label TEXT,
	items TEXT,
	calories INTEGER,
	FOREIGN KEY(template_meal_id) REFERENCES template_meals(id)
);

-- keyed by (profile_id, date) so two profiles can plan the same day
CREATE TABLE IF NOT EXISTS plan_days (
	date TEXT NOT NULL,
	profile_id INTEGER NOT NULL,
	template_id INTEGER NOT NULL,
	hunger INTEGER CHECK(hunger IS NULL OR hunger BETWEEN 1 AND 5),
	notes TEXT,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	PRIMARY KEY(profile_id, date)
);

-- append-only; the latest row per (profile_id, date, meal_type) is the current choice
CREATE TABLE IF NOT EXISTS day_meals (
	id INTEGER PRIMARY KEY,
	profile_id INTEGER NOT NULL,
	date TEXT NOT NULL,
	meal_type TEXT NOT NULL CHECK(meal_type IN ('breakfast','lunch','dinner','snack_am','snack_pm')),
	chosen_source TEXT NOT NULL CHECK(chosen_source IN ('proposed','alternative','free','skipped')),
	chosen_title TEXT,
	chosen_label TEXT,
	chosen_items TEXT,
	notes TEXT,
	ts TEXT
);

CREATE TABLE IF NOT EXISTS swaps (
	id INTEGER PRIMARY KEY,
	profile_id INTEGER NOT NULL,
	date_from TEXT NOT NULL,
	date_to TEXT NOT NULL,
	meal_type TEXT NOT NULL,
	ts TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS snacks (
	id INTEGER PRIMARY KEY,
	profile_id INTEGER NOT NULL,
	date TEXT NOT NULL,
	period TEXT NOT NULL CHECK(period IN ('am','pm')),
	done INTEGER NOT NULL,
	ts TEXT,
	UNIQUE(profile_id, date, period)
);

CREATE TABLE IF NOT EXISTS free_meals (
	id INTEGER PRIMARY KEY,
	profile_id INTEGER NOT NULL,
	date TEXT NOT NULL,
	meal_type TEXT NOT NULL,
	notes TEXT,
	ts TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_day_meals_p ON day_meals(profile_id, date, meal_type);
CREATE INDEX IF NOT EXISTS idx_snacks_p ON snacks(profile_id, date, period);
CREATE INDEX IF NOT EXISTS idx_free_meals_p ON free_meals(profile_id, date);
CREATE INDEX IF NOT EXISTS idx_template_meals_slot ON template_meals(template_id, dow, meal_type);
`

// migration upgrades the schema from version-1 to version.
type migration struct {
	version int
	stmts   []string
}

// migrations holds the incremental steps applied to stores created below SchemaVersion.
var migrations = []migration{}
