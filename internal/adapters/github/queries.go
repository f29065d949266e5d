package github

// RepositoryCountQuery returns only the match count for a search expression
// plus the rate limit block every operation carries
const RepositoryCountQuery = `
query ($query: String!) {
  rateLimit {
    cost
    remaining
    resetAt
  }
  search(query: $query, type: REPOSITORY, first: 1) {
    repositoryCount
  }
}
`

// RepositorySearchQuery pages repository nodes for a search expression
const RepositorySearchQuery = `
query ($query: String!, $first: Int!, $after: String) {
  rateLimit {
    cost
    remaining
    resetAt
  }
  search(query: $query, type: REPOSITORY, first: $first, after: $after) {
    repositoryCount
    pageInfo {
      hasNextPage
      endCursor
    }
    nodes {
      ...RepositoryFields
    }
  }
}

fragment RepositoryFields on Repository {
  id
  databaseId
  name
  nameWithOwner
  description
  stargazerCount
  forkCount
  isPrivate
  isFork
  isArchived
  createdAt
  updatedAt
  pushedAt
  owner {
    login
    __typename
  }
  watchers {
    totalCount
  }
  issues(states: OPEN) {
    totalCount
  }
  primaryLanguage {
    name
  }
}
`
