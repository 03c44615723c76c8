package publisher

import (
	"context"
	"fmt"

	audit "enrollment/pkg/platform/audit"
)

// UserRegistered records a new user account.
func (p *Publisher) UserRegistered(ctx context.Context, userID int64, email string) {
	p.Publish(ctx, audit.TopicUserRegistered, audit.EventUserRegistered,
		"Usuario registrado", "Nuevo usuario: "+email,
		audit.EntityUser, userID)
}

func (p *Publisher) FacultyCreated(ctx context.Context, facultyID int64, name string) {
	p.Publish(ctx, audit.TopicFacultyCreated, audit.EventFacultyCreated,
		"Facultad creada", "Nueva facultad: "+name,
		audit.EntityFaculty, facultyID)
}

func (p *Publisher) FacultyUpdated(ctx context.Context, facultyID int64, name string) {
	p.Publish(ctx, audit.TopicFacultyUpdated, audit.EventFacultyUpdated,
		"Facultad actualizada", "Facultad actualizada: "+name,
		audit.EntityFaculty, facultyID)
}

func (p *Publisher) FacultyDeleted(ctx context.Context, facultyID int64, name string) {
	p.Publish(ctx, audit.TopicFacultyDeleted, audit.EventFacultyDeleted,
		"Facultad eliminada", "Facultad eliminada: "+name,
		audit.EntityFaculty, facultyID)
}

func (p *Publisher) CareerCreated(ctx context.Context, careerID int64, name, facultyName string) {
	p.Publish(ctx, audit.TopicCareerCreated, audit.EventCareerCreated,
		"Carrera creada", fmt.Sprintf("Nueva carrera: %s en facultad: %s", name, facultyName),
		audit.EntityCareer, careerID)
}

func (p *Publisher) CareerUpdated(ctx context.Context, careerID int64, name, facultyName string) {
	p.Publish(ctx, audit.TopicCareerUpdated, audit.EventCareerUpdated,
		"Carrera actualizada", fmt.Sprintf("Carrera actualizada: %s en facultad: %s", name, facultyName),
		audit.EntityCareer, careerID)
}

func (p *Publisher) CareerDeleted(ctx context.Context, careerID int64, name string) {
	p.Publish(ctx, audit.TopicCareerDeleted, audit.EventCareerDeleted,
		"Carrera eliminada", "Carrera eliminada: "+name,
		audit.EntityCareer, careerID)
}
