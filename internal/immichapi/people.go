package immichapi

import (
	"context"
	"fmt"
)

// Person is an Immich person record as returned by the people endpoints.
type Person struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	IsHidden bool   `json:"isHidden"`
}

type peopleResponse struct {
	People []Person `json:"people"`
	Total  int      `json:"total"`
}

// GetPeople returns all persons known to the server, including hidden ones.
func (c *Client) GetPeople(ctx context.Context) ([]Person, error) {
	ctx, cancel := context.WithTimeout(ctx, mutationTimeout)
	defer cancel()

	resp, err := doGetJSON[peopleResponse](ctx, c, "people?withHidden=true&size=1000")
	if err != nil {
		return nil, fmt.Errorf("get people: %w", err)
	}
	return resp.People, nil
}

// CreatePerson creates a new named person and returns it.
func (c *Client) CreatePerson(ctx context.Context, name string) (*Person, error) {
	ctx, cancel := context.WithTimeout(ctx, mutationTimeout)
	defer cancel()

	body := map[string]string{"name": name}
	person, err := doPostJSON[Person](ctx, c, "people", body)
	if err != nil {
		return nil, fmt.Errorf("create person %q: %w", name, err)
	}
	return person, nil
}

// RenamePerson sets the display name of an existing person.
func (c *Client) RenamePerson(ctx context.Context, personID, name string) (*Person, error) {
	ctx, cancel := context.WithTimeout(ctx, mutationTimeout)
	defer cancel()

	body := map[string]string{"name": name}
	person, err := doPutJSON[Person](ctx, c, "people/"+personID, body)
	if err != nil {
		return nil, fmt.Errorf("rename person %s: %w", personID, err)
	}
	return person, nil
}

// GetPersonThumbnail fetches the person's thumbnail image.
func (c *Client) GetPersonThumbnail(ctx context.Context, personID string) ([]byte, string, error) {
	ctx, cancel := context.WithTimeout(ctx, mutationTimeout)
	defer cancel()

	return doGetRaw(ctx, c, "people/"+personID+"/thumbnail")
}
