package derby

import "errors"

var ErrConfiguration = errors.New("invalid derby configuration")
var ErrAlreadyScheduled = errors.New("round lineup already generated")
var ErrScheduling = errors.New("problem generating lineup for round")
var ErrNoPriorRace = errors.New("there is no prior race to run")
var ErrConsistency = errors.New("bye placement does not match group bye counts")
var ErrNotPrepared = errors.New("derby has not been prepared")
var ErrNoLineup = errors.New("no lineup for current race")
