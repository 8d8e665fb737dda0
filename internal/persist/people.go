package persist

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/sells-group/pe-intel/internal/model"
)

// personFields carries the profile columns an item proposes for a person.
// People are keyed by LinkedIn URL when present, otherwise by normalized
// full name.
type personFields struct {
	fullName string
	title    string
	bio      string
	linkedin string
	email    string
	location string
	crd      string
	photoURL string
	bioURL   string
}

// applyTeamMember records a person scraped from a firm team page and links
// them to the firm.
func (p *Persister) applyTeamMember(ctx context.Context, q pgx.Tx, v *model.TeamMember, src model.Source) (outcome, error) {
	if v.FullName == "" || v.FirmID == 0 {
		return outcomeSkipped, eris.New("persist: team member without name or firm")
	}
	f := personFields{
		fullName: v.FullName,
		title:    v.Title,
		linkedin: v.LinkedIn,
		email:    v.Email,
		photoURL: v.PhotoURL,
		bioURL:   v.BioURL,
	}
	id, created, err := p.upsertPerson(ctx, q, f, v.Conf, src)
	if err != nil {
		return outcomeSkipped, err
	}
	if err := p.linkFirmPerson(ctx, q, v.FirmID, id, v.Title); err != nil {
		return outcomeSkipped, err
	}
	p.cachePerson(f, id)
	if created {
		return outcomePersisted, nil
	}
	return outcomeUpdated, nil
}

// applyPerson merges a full profile, including education and prior roles.
func (p *Persister) applyPerson(ctx context.Context, q pgx.Tx, v *model.Person, src model.Source) (outcome, error) {
	if v.FullName == "" {
		return outcomeSkipped, eris.New("persist: person without name")
	}
	f := personFields{
		fullName: v.FullName,
		title:    v.Title,
		bio:      v.Bio,
		linkedin: v.LinkedIn,
		email:    v.Email,
		location: v.Location,
	}
	id, created, err := p.upsertPerson(ctx, q, f, v.Conf, src)
	if err != nil {
		return outcomeSkipped, err
	}
	if v.FirmID > 0 {
		if err := p.linkFirmPerson(ctx, q, v.FirmID, id, v.Title); err != nil {
			return outcomeSkipped, err
		}
	}
	if err := p.addEducation(ctx, q, id, v.Education); err != nil {
		return outcomeSkipped, err
	}
	if err := p.addExperience(ctx, q, id, v.Experience); err != nil {
		return outcomeSkipped, err
	}
	p.cachePerson(f, id)
	if created {
		return outcomePersisted, nil
	}
	return outcomeUpdated, nil
}

// applyRelatedPerson records a control person from a regulatory filing.
func (p *Persister) applyRelatedPerson(ctx context.Context, q pgx.Tx, v *model.RelatedPerson, src model.Source) (outcome, error) {
	if v.FullName == "" || v.FirmID == 0 {
		return outcomeSkipped, eris.New("persist: related person without name or firm")
	}
	f := personFields{
		fullName: v.FullName,
		title:    v.Title,
		crd:      v.CRDNumber,
	}
	id, created, err := p.upsertPerson(ctx, q, f, v.Conf, src)
	if err != nil {
		return outcomeSkipped, err
	}
	if err := p.linkFirmPerson(ctx, q, v.FirmID, id, v.Title); err != nil {
		return outcomeSkipped, err
	}
	p.cachePerson(f, id)
	if created {
		return outcomePersisted, nil
	}
	return outcomeUpdated, nil
}

// upsertPerson resolves the person and creates or merges their row. It does
// not write the cache; callers cache after their remaining writes succeed,
// so a rolled-back savepoint leaves no stale entries.
func (p *Persister) upsertPerson(ctx context.Context, q pgx.Tx, f personFields, conf model.Confidence, src model.Source) (int64, bool, error) {
	id, err := p.findPerson(ctx, q, f)
	if err != nil {
		return 0, false, err
	}
	if id != 0 {
		return id, false, p.mergePerson(ctx, q, id, f, conf, src)
	}

	err = q.QueryRow(ctx,
		`INSERT INTO pe_people (full_name, title, bio, linkedin_url, email, location, crd_number,
			photo_url, bio_url, confidence, data_sources)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 RETURNING id`,
		f.fullName, textOrNil(f.title), textOrNil(f.bio), textOrNil(f.linkedin), textOrNil(f.email),
		textOrNil(f.location), textOrNil(f.crd), textOrNil(f.photoURL), textOrNil(f.bioURL),
		string(confOrLow(conf)), []string{string(src)},
	).Scan(&id)
	if err != nil {
		return 0, false, eris.Wrapf(err, "persist: create person %q", f.fullName)
	}
	return id, true, nil
}

func (p *Persister) findPerson(ctx context.Context, q pgx.Tx, f personFields) (int64, error) {
	if f.linkedin != "" {
		if id, ok := p.personIDs[f.linkedin]; ok {
			return id, nil
		}
		var id int64
		err := q.QueryRow(ctx, `SELECT id FROM pe_people WHERE linkedin_url = $1 ORDER BY id LIMIT 1`, f.linkedin).Scan(&id)
		if err == nil {
			return id, nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return 0, eris.Wrap(err, "persist: look up person by linkedin")
		}
	}
	key := normName(f.fullName)
	if id, ok := p.personIDs[key]; ok {
		return id, nil
	}
	var id int64
	err := q.QueryRow(ctx, `SELECT id FROM pe_people WHERE lower(full_name) = $1 ORDER BY id LIMIT 1`, key).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, eris.Wrap(err, "persist: look up person by name")
	}
	return id, nil
}

func (p *Persister) mergePerson(ctx context.Context, q pgx.Tx, id int64, f personFields, conf model.Confidence, src model.Source) error {
	var cur struct {
		title, bio, linkedin, email  *string
		location, crd, photo, bioURL *string
		confidence                   string
		dataSources                  []string
	}
	err := q.QueryRow(ctx,
		`SELECT title, bio, linkedin_url, email, location, crd_number, photo_url, bio_url, confidence, data_sources
		 FROM pe_people WHERE id = $1`, id).
		Scan(&cur.title, &cur.bio, &cur.linkedin, &cur.email, &cur.location, &cur.crd,
			&cur.photo, &cur.bioURL, &cur.confidence, &cur.dataSources)
	if err != nil {
		return eris.Wrapf(err, "persist: read person %d", id)
	}

	over := conf.AtLeast(model.Confidence(cur.confidence))
	_, err = q.Exec(ctx,
		`UPDATE pe_people SET title = $1, bio = $2, linkedin_url = $3, email = $4, location = $5,
			crd_number = $6, photo_url = $7, bio_url = $8, confidence = $9, data_sources = $10, updated_at = now()
		 WHERE id = $11`,
		mergeText(cur.title, f.title, over),
		mergeText(cur.bio, f.bio, over),
		mergeText(cur.linkedin, f.linkedin, over),
		mergeText(cur.email, f.email, over),
		mergeText(cur.location, f.location, over),
		mergeText(cur.crd, f.crd, over),
		mergeText(cur.photo, f.photoURL, over),
		mergeText(cur.bioURL, f.bioURL, over),
		string(maxConfidence(model.Confidence(cur.confidence), conf)),
		unionSources(cur.dataSources, src),
		id,
	)
	return eris.Wrapf(err, "persist: update person %d", id)
}

func (p *Persister) cachePerson(f personFields, id int64) {
	if f.linkedin != "" {
		p.personIDs[f.linkedin] = id
	}
	p.personIDs[normName(f.fullName)] = id
}

func (p *Persister) linkFirmPerson(ctx context.Context, q pgx.Tx, firmID, personID int64, title string) error {
	_, err := q.Exec(ctx,
		`INSERT INTO pe_firm_people (firm_id, person_id, title)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (firm_id, person_id) DO NOTHING`,
		firmID, personID, textOrNil(title))
	return eris.Wrap(err, "persist: link firm person")
}

// addEducation appends schooling entries, deduplicated per person by
// institution.
func (p *Persister) addEducation(ctx context.Context, q pgx.Tx, personID int64, entries []model.Education) error {
	for _, e := range entries {
		if e.Institution == "" {
			continue
		}
		var exists bool
		err := q.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM pe_person_education WHERE person_id = $1 AND lower(institution) = $2)`,
			personID, normName(e.Institution)).Scan(&exists)
		if err != nil {
			return eris.Wrap(err, "persist: check education")
		}
		if exists {
			continue
		}
		_, err = q.Exec(ctx,
			`INSERT INTO pe_person_education (person_id, institution, degree, field, graduation_year)
			 VALUES ($1, $2, $3, $4, $5)`,
			personID, e.Institution, textOrNil(e.Degree), textOrNil(e.Field), intOrNil(e.Year))
		if err != nil {
			return eris.Wrap(err, "persist: add education")
		}
	}
	return nil
}

// addExperience appends prior roles, deduplicated per person by company and
// title.
func (p *Persister) addExperience(ctx context.Context, q pgx.Tx, personID int64, entries []model.Experience) error {
	for _, e := range entries {
		if e.Company == "" {
			continue
		}
		var exists bool
		err := q.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM pe_person_experience
			  WHERE person_id = $1 AND lower(company) = $2 AND lower(COALESCE(title, '')) = $3)`,
			personID, normName(e.Company), normName(e.Title)).Scan(&exists)
		if err != nil {
			return eris.Wrap(err, "persist: check experience")
		}
		if exists {
			continue
		}
		_, err = q.Exec(ctx,
			`INSERT INTO pe_person_experience (person_id, company, title, start_year, end_year)
			 VALUES ($1, $2, $3, $4, $5)`,
			personID, e.Company, textOrNil(e.Title), intOrNil(e.StartYear), intOrNil(e.EndYear))
		if err != nil {
			return eris.Wrap(err, "persist: add experience")
		}
	}
	return nil
}
