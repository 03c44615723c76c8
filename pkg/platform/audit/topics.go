package audit

// Topic is the tag of a bus topic. Concrete topic names are configured
// separately so environments can rename them.
type Topic string

const (
	TopicAudit          Topic = "audit"
	TopicUserRegistered Topic = "user-registered"
	TopicFacultyCreated Topic = "faculty-created"
	TopicFacultyUpdated Topic = "faculty-updated"
	TopicFacultyDeleted Topic = "faculty-deleted"
	TopicCareerCreated  Topic = "career-created"
	TopicCareerUpdated  Topic = "career-updated"
	TopicCareerDeleted  Topic = "career-deleted"
)

// Topics holds the configured topic names.
type Topics struct {
	Audit          string `env:"AUDIT" envDefault:"audit.events"`
	UserRegistered string `env:"USER_REGISTERED" envDefault:"user.registered"`
	FacultyCreated string `env:"FACULTY_CREATED" envDefault:"faculty.created"`
	FacultyUpdated string `env:"FACULTY_UPDATED" envDefault:"faculty.updated"`
	FacultyDeleted string `env:"FACULTY_DELETED" envDefault:"faculty.deleted"`
	CareerCreated  string `env:"CAREER_CREATED" envDefault:"career.created"`
	CareerUpdated  string `env:"CAREER_UPDATED" envDefault:"career.updated"`
	CareerDeleted  string `env:"CAREER_DELETED" envDefault:"career.deleted"`
}

// DefaultTopics returns the names used when nothing is configured.
func DefaultTopics() Topics {
	return Topics{
		Audit:          "audit.events",
		UserRegistered: "user.registered",
		FacultyCreated: "faculty.created",
		FacultyUpdated: "faculty.updated",
		FacultyDeleted: "faculty.deleted",
		CareerCreated:  "career.created",
		CareerUpdated:  "career.updated",
		CareerDeleted:  "career.deleted",
	}
}

// Resolve returns the configured name for a topic tag. Unknown tags and tags
// configured with an empty name are not resolvable.
func (t Topics) Resolve(tag Topic) (string, bool) {
	var name string
	switch tag {
	case TopicAudit:
		name = t.Audit
	case TopicUserRegistered:
		name = t.UserRegistered
	case TopicFacultyCreated:
		name = t.FacultyCreated
	case TopicFacultyUpdated:
		name = t.FacultyUpdated
	case TopicFacultyDeleted:
		name = t.FacultyDeleted
	case TopicCareerCreated:
		name = t.CareerCreated
	case TopicCareerUpdated:
		name = t.CareerUpdated
	case TopicCareerDeleted:
		name = t.CareerDeleted
	}
	return name, name != ""
}

// Subscriptions lists every topic the audit consumer group listens to,
// aggregate topic first.
func (t Topics) Subscriptions() []string {
	all := []string{
		t.Audit,
		t.UserRegistered,
		t.FacultyCreated,
		t.FacultyUpdated,
		t.FacultyDeleted,
		t.CareerCreated,
		t.CareerUpdated,
		t.CareerDeleted,
	}
	out := make([]string, 0, len(all))
	for _, name := range all {
		if name != "" {
			out = append(out, name)
		}
	}
	return out
}
