package tier

import (
	"context"
	"time"

	"nidhi/pkg/domain"
)

// SeedHierarchy creates a minimal ministry → state → district → agency chain
// for local runs and tests. Returns the tiers top-down.
func SeedHierarchy(store Store, stateName, districtName, agencyName string) (ministry, state, district, agency *Tier, err error) {
	ctx := context.Background()
	now := time.Now()

	ministry = &Tier{ID: domain.NewTierID(), Level: domain.LevelMinistry, Name: "Ministry of Social Justice", CreatedAt: now}
	if err = store.Create(ctx, ministry); err != nil {
		return nil, nil, nil, nil, err
	}

	state = &Tier{ID: domain.NewTierID(), Level: domain.LevelState, Name: stateName, ParentID: &ministry.ID, CreatedAt: now}
	if err = store.Create(ctx, state); err != nil {
		return nil, nil, nil, nil, err
	}

	district = &Tier{ID: domain.NewTierID(), Level: domain.LevelDistrict, Name: districtName, ParentID: &state.ID, CreatedAt: now}
	if err = store.Create(ctx, district); err != nil {
		return nil, nil, nil, nil, err
	}

	agency = &Tier{ID: domain.NewTierID(), Level: domain.LevelAgency, Name: agencyName, ParentID: &district.ID, CreatedAt: now}
	if err = store.Create(ctx, agency); err != nil {
		return nil, nil, nil, nil, err
	}
	return ministry, state, district, agency, nil
}
